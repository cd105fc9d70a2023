// internal/paginate/api.go
package paginate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/expo-works/scrape/pkg/models"
)

// ErrNoAPIFetcher is returned when an API-paginated plan runs without a JSON
// transport.
var ErrNoAPIFetcher = errors.New("api pagination requires a JSON fetcher")

// PagePlaceholder marks where the page number goes in a planned API parameter.
const PagePlaceholder = "{page}"

// listWrapperKeys are the envelope keys JSON listing APIs commonly wrap their
// record array in, probed in order.
var listWrapperKeys = []string{"data", "items", "results", "exhibitors", "records", "list"}

// apiPages pages through a JSON listing endpoint by incrementing its page
// parameter until the endpoint stops yielding records. Paging is zero-based:
// the first request asks for page 0.
func (d *Driver) apiPages(ctx context.Context, plan *models.ExtractionPlan) ([]*models.RawPage, error) {
	if d.api == nil {
		return nil, ErrNoAPIFetcher
	}

	var pages []*models.RawPage
	for pageNum := 0; len(pages) < d.opts.MaxPages; pageNum++ {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		if pageNum > 0 {
			d.pause(ctx, d.opts.RequestDelay)
		}

		pageURL, err := buildAPIURL(plan.APIEndpoint, plan.APIParams, pageNum)
		if err != nil {
			if len(pages) > 0 {
				return pages, nil
			}
			return nil, err
		}

		body, err := d.api.FetchJSON(ctx, pageURL, nil)
		if err != nil {
			// First page failing is a real error; later pages failing just
			// means we ran off the end.
			if len(pages) > 0 {
				log.Debug().Err(err).Int("page", pageNum).Msg("API page fetch failed, ending pagination")
				return pages, nil
			}
			return nil, err
		}

		items, isList := parseAPIResponse(body)
		if len(items) == 0 {
			log.Debug().Int("page", pageNum).Msg("Empty API page, pagination complete")
			break
		}

		page := models.NewRawPage(pageURL)
		page.Items = items
		pages = append(pages, page)

		log.Debug().Str("url", pageURL).Int("items", len(items)).Msg("Extracted API page")

		// A single-object response is not a paged list; don't keep asking.
		if !isList {
			break
		}
	}
	return pages, nil
}

// buildAPIURL composes the endpoint with its planned parameters, substituting
// the current page number. When no parameter carries the page placeholder, a
// plain "page" parameter is appended.
func buildAPIURL(endpoint string, params map[string]string, pageNum int) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("bad API endpoint %q: %w", endpoint, err)
	}

	q := u.Query()
	pageBound := false
	for k, v := range params {
		if strings.Contains(v, PagePlaceholder) {
			v = strings.ReplaceAll(v, PagePlaceholder, strconv.Itoa(pageNum))
			pageBound = true
		}
		q.Set(k, v)
	}
	if !pageBound {
		if strings.Contains(endpoint, PagePlaceholder) {
			u, err = url.Parse(strings.ReplaceAll(endpoint, PagePlaceholder, strconv.Itoa(pageNum)))
			if err != nil {
				return "", fmt.Errorf("bad API endpoint %q: %w", endpoint, err)
			}
			q = u.Query()
		} else {
			q.Set("page", strconv.Itoa(pageNum))
		}
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseAPIResponse turns one response body into items. Record arrays are found
// at the root or under a known wrapper key; a bare object becomes a single
// item, reported as non-list.
func parseAPIResponse(body string) ([]models.Item, bool) {
	var root interface{}
	if err := json.Unmarshal([]byte(body), &root); err != nil {
		log.Warn().Err(err).Msg("API response is not valid JSON")
		return nil, false
	}

	switch v := root.(type) {
	case []interface{}:
		return itemsFromArray(v), true
	case map[string]interface{}:
		for _, key := range listWrapperKeys {
			if arr, ok := v[key].([]interface{}); ok {
				return itemsFromArray(arr), true
			}
		}
		// No recognizable wrapper: the object itself is the record.
		if item := itemFromObject(v); len(item) > 0 {
			return []models.Item{item}, false
		}
	}
	return nil, false
}

func itemsFromArray(arr []interface{}) []models.Item {
	items := make([]models.Item, 0, len(arr))
	for _, el := range arr {
		obj, ok := el.(map[string]interface{})
		if !ok {
			continue
		}
		if item := itemFromObject(obj); len(item) > 0 {
			items = append(items, item)
		}
	}
	return items
}

// itemFromObject flattens one JSON record into an item. Nulls keep the
// no-value semantics; composite values are re-serialized.
func itemFromObject(obj map[string]interface{}) models.Item {
	item := make(models.Item, len(obj))
	for k, v := range obj {
		item[k] = stringify(v)
	}
	return item
}

func stringify(v interface{}) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return &t
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	case bool:
		s := strconv.FormatBool(t)
		return &s
	default:
		raw, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		s := string(raw)
		return &s
	}
}
