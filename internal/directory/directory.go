// Package directory resolves callers against the external profile and
// analytics store, tolerating the field-name variants found in older records.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashureev/voicecall/internal/apperr"
	"github.com/ashureev/voicecall/internal/domain"
	"github.com/ashureev/voicecall/internal/metrics"
)

const tracerName = "github.com/ashureev/voicecall/internal/directory"

// ErrNoDocument is returned by a Collection when nothing matches the filter.
var ErrNoDocument = errors.New("directory: no matching document")

// Collection is the single query the directory needs from its backing store.
type Collection interface {
	FindOne(ctx context.Context, filter bson.M) (bson.M, error)
}

// Resolver is implemented by Directory.
type Resolver interface {
	Resolve(ctx context.Context, c domain.NormalizedContact) (*domain.UserRecord, error)
}

// Directory looks up profiles by phone or email and joins their analytics.
type Directory struct {
	users     Collection
	analytics Collection
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithMetrics records lookup results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Directory) { d.metrics = m }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Directory) { d.tracer = tp.Tracer(tracerName) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Directory) { d.logger = l }
}

// New creates a Directory over the given collections. A nil users collection
// yields a directory that reports every lookup as unavailable.
func New(users, analytics Collection, opts ...Option) *Directory {
	d := &Directory{
		users:     users,
		analytics: analytics,
		tracer:    otel.Tracer(tracerName),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve finds the profile for c and joins its first matching analytics record.
//
// It returns a VALIDATION_ERROR when c carries neither phone nor email, NOT_FOUND
// when no profile matches, and UNAVAILABLE for any store failure. Panics from
// the backing store are recovered into UNAVAILABLE.
func (d *Directory) Resolve(ctx context.Context, c domain.NormalizedContact) (rec *domain.UserRecord, err error) {
	ctx, span := d.tracer.Start(ctx, "directory.Resolve", trace.WithAttributes(
		attribute.Bool("contact.has_phone", c.HasPhone()),
		attribute.Bool("contact.has_email", c.HasEmail()),
	))
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, apperr.NewUnavailable("directory lookup failed", fmt.Errorf("panic: %v", r))
		}
		result := lookupResult(err)
		d.metrics.RecordDirectoryLookup(result)
		span.SetAttributes(attribute.String("directory.result", result))
		if err != nil && !apperr.Is(err, apperr.CodeNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		span.End()
	}()

	if c.IsEmpty() {
		return nil, apperr.NewValidation("either phone number or email is required")
	}
	if d.users == nil {
		return nil, apperr.NewUnavailable("directory not configured", nil)
	}

	profile, err := d.findProfile(ctx, c)
	if err != nil {
		return nil, err
	}

	id := profile["_id"]
	analytics, err := d.findAnalytics(ctx, id)
	if err != nil {
		return nil, err
	}

	rec = &domain.UserRecord{
		ID:        stringify(id),
		Profile:   projectProfile(profile),
		Analytics: projectAnalytics(analytics),
	}
	d.logger.Info("Directory resolved user", "user_id", rec.ID, "has_analytics", analytics != nil)
	return rec, nil
}

func (d *Directory) findProfile(ctx context.Context, c domain.NormalizedContact) (bson.M, error) {
	lookups := make([]Lookup[domain.NormalizedContact], 0, len(PhoneLookups)+len(EmailLookups))
	if c.HasPhone() {
		lookups = append(lookups, PhoneLookups...)
	}
	if c.HasEmail() {
		lookups = append(lookups, EmailLookups...)
	}

	doc, err := runLookups(ctx, d.users, lookups, c)
	if err != nil {
		return nil, apperr.NewUnavailable("directory lookup failed", err)
	}
	if doc == nil {
		return nil, apperr.NewNotFound("user not found")
	}
	return doc, nil
}

func (d *Directory) findAnalytics(ctx context.Context, id any) (bson.M, error) {
	if d.analytics == nil || id == nil {
		return nil, nil
	}
	doc, err := runLookups(ctx, d.analytics, AnalyticsLookups, id)
	if err != nil {
		return nil, apperr.NewUnavailable("analytics lookup failed", err)
	}
	return doc, nil
}

// runLookups evaluates lookups in order and returns the first matching document,
// or nil if none match.
func runLookups[K any](ctx context.Context, coll Collection, lookups []Lookup[K], key K) (bson.M, error) {
	for _, p := range lookups {
		filter, ok := p.Filter(key)
		if !ok {
			continue
		}
		doc, err := coll.FindOne(ctx, filter)
		if errors.Is(err, ErrNoDocument) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("find by %s: %w", p.Field, err)
		}
		return doc, nil
	}
	return nil, nil
}

func lookupResult(err error) string {
	switch {
	case err == nil:
		return "found"
	case apperr.Is(err, apperr.CodeNotFound):
		return "not_found"
	case apperr.Is(err, apperr.CodeValidation):
		return "invalid"
	default:
		return "unavailable"
	}
}
