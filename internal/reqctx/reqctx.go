// Package reqctx threads a run identifier through a crawl's context so every
// error and log line can be tied to the run that produced it.
package reqctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

type key int

const runKey key = 0

// RunContext identifies one crawl run.
type RunContext struct {
	RunID     string
	StartedAt time.Time
}

// WithRunContext attaches a fresh run identity to ctx.
func WithRunContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, runKey, &RunContext{
		RunID:     generateID(),
		StartedAt: time.Now(),
	})
}

// GetRunContext returns the run identity, or a placeholder when none is attached.
func GetRunContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runKey).(*RunContext); ok {
		return rc
	}
	return &RunContext{
		RunID:     "unknown",
		StartedAt: time.Now(),
	}
}

func generateID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// RunError wraps an error with the run it belongs to
type RunError struct {
	RunID string
	Err   error
}

// Error implements the error interface
func (e *RunError) Error() string {
	return fmt.Sprintf("[%s] %v", e.RunID, e.Err)
}

// Unwrap returns the underlying error
func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError creates a RunError from context
func NewRunError(ctx context.Context, err error) error {
	rc := GetRunContext(ctx)
	return &RunError{RunID: rc.RunID, Err: err}
}
