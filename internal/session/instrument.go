package session

import (
	"net/http"

	"github.com/pitabwire/statepage/internal/observability"
)

// instrumented records writes to the wrapped Store as metrics and spans.
type instrumented struct {
	Store
	metrics *observability.Metrics
}

// Instrument wraps s so that Save and Clear are traced and counted.
// A nil metrics returns s unchanged.
func Instrument(s Store, metrics *observability.Metrics) Store {
	if metrics == nil {
		return s
	}
	return &instrumented{Store: s, metrics: metrics}
}

func (s *instrumented) Save(w http.ResponseWriter, r *http.Request, payload []byte) (err error) {
	_, span := observability.StartSpan(r.Context(), "session.save",
		observability.AttrSessionDriver.String(s.Driver()))
	defer func() { observability.EndSpanWithError(span, err) }()

	err = s.Store.Save(w, r, payload)
	s.metrics.RecordSessionWrite(s.Driver(), err)
	return err
}

func (s *instrumented) Clear(w http.ResponseWriter, r *http.Request) (err error) {
	_, span := observability.StartSpan(r.Context(), "session.clear",
		observability.AttrSessionDriver.String(s.Driver()))
	defer func() { observability.EndSpanWithError(span, err) }()

	err = s.Store.Clear(w, r)
	s.metrics.RecordSessionWrite(s.Driver(), err)
	return err
}
