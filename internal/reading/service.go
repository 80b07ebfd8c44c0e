// Package reading turns a transcript or a typed value into a logged reading:
// extract, convert, classify, gate, persist.
package reading

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bina-refinery/logbook/internal/catalog"
	"github.com/bina-refinery/logbook/internal/models"
	"github.com/bina-refinery/logbook/internal/observe"
	"github.com/bina-refinery/logbook/internal/storage"
)

// Publisher forwards persisted readings to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, r models.Reading) error
}

// Entry is a value to log, in any unit the parameter accepts. An empty Unit
// means the parameter's own unit.
type Entry struct {
	Location  string  `json:"location"`
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
}

// Outcome describes an accepted reading.
type Outcome struct {
	Reading    models.Reading        `json:"reading"`
	Spec       catalog.ParameterSpec `json:"spec"`
	Transcript string                `json:"transcript,omitempty"`
	Message    string                `json:"message"`
}

// Service runs the reading pipeline against one catalog and store.
type Service struct {
	catalog   *catalog.Catalog
	store     storage.Store
	gate      bool
	now       func() time.Time
	publisher Publisher
	metrics   *observe.Metrics
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher forwards every persisted reading to p.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics counts recorded and rejected readings.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. When gate is true, readings outside their
// parameter's range are refused instead of logged.
func NewService(cat *catalog.Catalog, store storage.Store, gate bool, opts ...Option) *Service {
	s := &Service{
		catalog: cat,
		store:   store,
		gate:    gate,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GateOnRange reports whether out-of-range readings are refused.
func (s *Service) GateOnRange() bool { return s.gate }

// RecordTranscript extracts the first number from transcript and records it
// in the parameter's own unit.
func (s *Service) RecordTranscript(ctx context.Context, location, parameter, transcript string) (*Outcome, error) {
	if _, err := s.catalog.Parameter(location, parameter); err != nil {
		return nil, err
	}
	value, ok := Extract(transcript)
	if !ok {
		s.metrics.RecordExtractionFailure(ctx, parameter)
		s.logger.Info("no number in transcript", "parameter", parameter, "transcript", transcript)
		return nil, &ExtractionError{Transcript: transcript}
	}
	out, err := s.RecordValue(ctx, Entry{Location: location, Parameter: parameter, Value: value})
	if out != nil {
		out.Transcript = transcript
	}
	return out, err
}

// RecordValue converts e to the parameter's unit, classifies it and, unless
// gating refuses it, appends it to the log.
func (s *Service) RecordValue(ctx context.Context, e Entry) (*Outcome, error) {
	spec, err := s.catalog.Parameter(e.Location, e.Parameter)
	if err != nil {
		return nil, err
	}
	value, err := s.catalog.Convert(e.Location, e.Parameter, e.Value, e.Unit)
	if err != nil {
		return nil, err
	}

	r := models.Reading{
		Location:  e.Location,
		Parameter: e.Parameter,
		Value:     value,
		Unit:      spec.Unit,
		Timestamp: s.now().Truncate(time.Second),
	}
	if spec.HasRange() {
		lo, hi := spec.Bounds()
		r.Status = Classify(value, lo, hi)
		if s.gate && r.Status != models.StatusNormal {
			s.metrics.RecordRejection(ctx, r.Location, r.Parameter, string(r.Status))
			s.logger.Warn("reading out of range",
				"location", r.Location, "parameter", r.Parameter,
				"value", value, "min", lo, "max", hi, "status", r.Status)
			return nil, &RangeViolationError{
				Location:  r.Location,
				Parameter: r.Parameter,
				Value:     value,
				Min:       lo,
				Max:       hi,
				Unit:      spec.Unit,
				Status:    r.Status,
			}
		}
	}

	persisted := r
	if !s.store.Schema().HasStatus() {
		persisted.Status = ""
	}
	if err := s.store.Append(ctx, persisted); err != nil {
		return nil, err
	}
	s.metrics.RecordReading(ctx, r.Location, r.Parameter, string(r.Status))
	s.logger.Info("reading logged",
		"location", r.Location, "parameter", r.Parameter,
		"value", r.Value, "unit", r.Unit, "status", r.Status)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, r); err != nil {
			s.logger.Warn("publishing reading failed", "parameter", r.Parameter, "error", err)
		}
	}

	return &Outcome{Reading: r, Spec: spec, Message: message(r, spec)}, nil
}

func message(r models.Reading, spec catalog.ParameterSpec) string {
	msg := fmt.Sprintf("Successfully logged: %s = %s %s", r.Parameter, formatNumber(r.Value), r.Unit)
	if r.Status != "" && r.Status != models.StatusNormal {
		lo, hi := spec.Bounds()
		msg += fmt.Sprintf(" (%s, expected %s to %s %s)", r.Status, formatNumber(lo), formatNumber(hi), r.Unit)
	}
	return msg
}
