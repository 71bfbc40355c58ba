package model

import (
	"context"
	"errors"
	"fmt"
)

// RequestContext carries the identity and tracing information for the lifetime
// of a page request. The transport layer creates it once per request; the page
// pipeline fills in Page and Event as they become known.
type RequestContext struct {
	CorrelationID string
	TraceID       string
	SpanID        string
	Subject       string
	Page          string
	Transport     string
	Event         Event
}

// Validate checks that all mandatory fields are present.
// CorrelationID and Page must be non-empty.
func (rc *RequestContext) Validate() error {
	var errs []error
	if rc.CorrelationID == "" {
		errs = append(errs, fmt.Errorf("CorrelationID is required"))
	}
	if rc.Page == "" {
		errs = append(errs, fmt.Errorf("Page is required"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

type contextKey struct{}

// WithRequestContext attaches a RequestContext to the given context.
func WithRequestContext(ctx context.Context, rctx *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rctx)
}

// RequestContextFrom extracts the RequestContext from the context, or returns nil
// if not present.
func RequestContextFrom(ctx context.Context) *RequestContext {
	rctx, _ := ctx.Value(contextKey{}).(*RequestContext)
	return rctx
}
