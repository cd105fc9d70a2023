// Package gemini implements the oracle interfaces on Google Gemini.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/expo-works/scrape/internal/oracle"
	"github.com/expo-works/scrape/pkg/models"
)

const model = "gemini-2.5-flash"

// Ensure Client implements the oracle interfaces at compile time.
var (
	_ oracle.Planner = (*Client)(nil)
	_ oracle.Parser  = (*Client)(nil)
)

// Client plans and parses through the Gemini API.
type Client struct {
	client *genai.Client
}

// NewClient creates a client from an API key.
func NewClient(ctx context.Context, apiKey string) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: c}, nil
}

// Plan produces an extraction plan for one listing page.
func (c *Client) Plan(ctx context.Context, req oracle.PlanRequest) (*models.ExtractionPlan, error) {
	raw, err := c.generate(ctx, plannerSystemPrompt, BuildPlanPrompt(req))
	if err != nil {
		return nil, err
	}

	var plan models.ExtractionPlan
	if err := decodeJSON(raw, &plan); err != nil {
		return nil, fmt.Errorf("planner returned unusable JSON: %w", err)
	}
	if plan.URL == "" {
		plan.URL = req.URL
	}
	if err := plan.Validate(); err != nil {
		log.Warn().Err(err).Msg("Planner produced an invalid plan")
		return nil, fmt.Errorf("%w: %v", oracle.ErrUnplannable, err)
	}

	log.Info().
		Str("strategy", string(plan.Pagination)).
		Str("container", plan.Target.ItemContainerSelector).
		Bool("rendering", plan.RequiresRendering).
		Msg("Plan produced")

	return &plan, nil
}

// Replan produces a corrected plan after a failed attempt.
func (c *Client) Replan(ctx context.Context, req oracle.ReplanRequest) (*models.ExtractionPlan, error) {
	raw, err := c.generate(ctx, plannerSystemPrompt, BuildReplanPrompt(req))
	if err != nil {
		return nil, err
	}

	var plan models.ExtractionPlan
	if err := decodeJSON(raw, &plan); err != nil {
		return nil, fmt.Errorf("replanner returned unusable JSON: %w", err)
	}
	if plan.URL == "" {
		plan.URL = req.Previous.URL
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", oracle.ErrUnplannable, err)
	}

	log.Info().Str("container", plan.Target.ItemContainerSelector).Msg("Corrected plan produced")
	return &plan, nil
}

// DeriveDetailAPI generalizes an observed endpoint into a per-item template.
func (c *Client) DeriveDetailAPI(ctx context.Context, req oracle.DeriveAPIRequest) (*models.DetailAPIPlan, error) {
	raw, err := c.generate(ctx, deriveSystemPrompt, BuildDerivePrompt(req))
	if err != nil {
		return nil, err
	}

	var plan models.DetailAPIPlan
	if err := decodeJSON(raw, &plan); err != nil {
		return nil, fmt.Errorf("derivation returned unusable JSON: %w", err)
	}
	if !strings.Contains(plan.URLTemplate, models.IDPlaceholder) || plan.IDSelector == "" {
		return nil, fmt.Errorf("%w: derived template lacks %s or an id selector",
			oracle.ErrUnplannable, models.IDPlaceholder)
	}
	plan.SampleResponse = oracle.Truncate(req.SampleBody, 4000)

	log.Info().Str("template", plan.URLTemplate).Msg("Detail API template derived")
	return &plan, nil
}

// Parse consolidates raw crawl output into final records.
func (c *Client) Parse(ctx context.Context, pages []*models.RawPage, instructions string) ([]map[string]string, error) {
	prompt, err := BuildParsePrompt(pages, instructions)
	if err != nil {
		return nil, err
	}

	raw, err := c.generate(ctx, parserSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	var records []map[string]string
	if err := decodeJSON(raw, &records); err != nil {
		return nil, fmt.Errorf("parser returned unusable JSON: %w", err)
	}

	log.Info().Int("records", len(records)).Msg("Records parsed")
	return records, nil
}

// generate runs one prompt through the model.
func (c *Client) generate(ctx context.Context, system, prompt string) (string, error) {
	temp := float32(0.2)
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}

	result, err := c.client.Models.GenerateContent(ctx, model,
		[]*genai.Content{{
			Parts: []*genai.Part{{Text: prompt}},
		}},
		config,
	)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	if result == nil {
		return "", fmt.Errorf("gemini returned nil result")
	}
	return result.Text(), nil
}

// decodeJSON unmarshals a model response, tolerating markdown code fences.
func decodeJSON(raw string, v interface{}) error {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	return json.Unmarshal([]byte(s), v)
}
