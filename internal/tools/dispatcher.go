package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashureev/voicecall/internal/apperr"
	"github.com/ashureev/voicecall/internal/metrics"
)

const tracerName = "github.com/ashureev/voicecall/internal/tools"

// binding is a tool operation wrapped for dispatch. run always returns a
// success-shaped payload; err carries the true outcome.
type binding struct {
	run      func(ctx context.Context, raw []byte) (payload any, err error)
	fallback func(raw []byte, err error) any
}

type toolEntry struct {
	def    mcp.Tool
	schema *jsonschema.Schema
	binding
}

// Dispatcher validates tool calls and routes them to their handlers.
type Dispatcher struct {
	tools   map[Name]*toolEntry
	order   []Name
	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics records invocation outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) { d.tracer = tp.Tracer(tracerName) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// NewDispatcher compiles the tool schemas and binds the handlers to deps.
func NewDispatcher(deps Deps, opts ...Option) (*Dispatcher, error) {
	h := newHandlers(deps)
	d := &Dispatcher{
		tools:  make(map[Name]*toolEntry),
		tracer: otel.Tracer(tracerName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	bindings := map[Name]binding{
		ToolDetailedInfo: absorb(h.requestDetailedInfo, detailedInfoFallback),
		ToolCareerPaths:  absorb(h.careerPaths, careerPathsFallback),
		ToolAlumniInfo:   absorb(h.alumniInfo, alumniInfoFallback),
		ToolCheckUser:    absorb(h.checkUser, checkUserFallback),
	}

	for _, def := range Definitions() {
		name := Name(def.Name)
		bound, ok := bindings[name]
		if !ok {
			return nil, fmt.Errorf("no handler for tool %s", name)
		}
		schema, err := compileSchema(def)
		if err != nil {
			return nil, err
		}
		d.tools[name] = &toolEntry{def: def, schema: schema, binding: bound}
		d.order = append(d.order, name)
	}

	return d, nil
}

// Definitions returns the registered tool schemas in registration order.
func (d *Dispatcher) Definitions() []mcp.Tool {
	out := make([]mcp.Tool, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.tools[name].def)
	}
	return out
}

// Names returns the registered tool names, sorted.
func (d *Dispatcher) Names() []string {
	out := make([]string, 0, len(d.tools))
	for name := range d.tools {
		out = append(out, string(name))
	}
	sort.Strings(out)
	return out
}

// Dispatch runs one tool call. It never fails: the returned Payload is always
// success-shaped and the true result is on Outcome. Calls are attempted once.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) Invocation {
	start := time.Now()
	inv := Invocation{ID: uuid.NewString(), Tool: Name(name)}

	ctx, span := d.tracer.Start(ctx, "tools.Dispatch", trace.WithAttributes(
		attribute.String("tool.name", name),
		attribute.String("tool.invocation_id", inv.ID),
	))
	defer span.End()

	var err error
	entry, ok := d.tools[Name(name)]
	switch {
	case !ok:
		err = apperr.NewNotFound(fmt.Sprintf("unknown tool %q", name))
		inv.Payload = unknownToolPayload()
	default:
		raw := normalizeArgs(args)
		if verr := validateArgs(entry.schema, raw); verr != nil {
			err = apperr.NewValidation(fmt.Sprintf("invalid arguments for %s: %v", name, verr))
			inv.Payload = entry.fallback(raw, err)
		} else {
			inv.Payload, err = entry.run(ctx, raw)
		}
	}

	inv.Outcome = Outcome{Status: statusOf(err), Err: err, Duration: time.Since(start)}

	span.SetAttributes(attribute.String("tool.outcome", string(inv.Outcome.Status)))
	if inv.Outcome.Status == StatusError {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.MessageOf(err))
	}
	d.metrics.RecordToolCall(name, string(inv.Outcome.Status), inv.Outcome.Duration)

	attrs := []any{
		"tool", name,
		"invocation_id", inv.ID,
		"outcome", inv.Outcome.Status,
		"duration_ms", inv.Outcome.Duration.Milliseconds(),
	}
	if err != nil {
		d.logger.Warn("Tool call absorbed failure", append(attrs, "error", err)...)
	} else {
		d.logger.Info("Tool call completed", attrs...)
	}

	return inv
}

// absorb wraps a typed tool operation so that decoding failures, errors and
// panics all produce the fallback payload while the error is passed through.
func absorb[A, R any](run func(context.Context, A) (R, error), fallback func(A, error) R) binding {
	return binding{
		run: func(ctx context.Context, raw []byte) (payload any, err error) {
			var args A
			defer func() {
				if r := recover(); r != nil {
					err = apperr.NewInternal(fmt.Errorf("panic in tool handler: %v", r))
					payload = fallback(args, err)
				}
			}()

			if derr := json.Unmarshal(raw, &args); derr != nil {
				err = apperr.NewValidation(fmt.Sprintf("decode arguments: %v", derr))
				return fallback(args, err), err
			}

			res, err := run(ctx, args)
			if err != nil {
				return fallback(args, err), err
			}
			return res, nil
		},
		fallback: func(raw []byte, err error) any {
			var args A
			_ = json.Unmarshal(raw, &args)
			return fallback(args, err)
		},
	}
}

func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case apperr.Is(err, apperr.CodeValidation):
		return StatusIncomplete
	default:
		return StatusError
	}
}

func normalizeArgs(args json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []byte("{}")
	}
	return trimmed
}

func unknownToolPayload() map[string]string {
	return map[string]string{
		"message": "That capability isn't available right now. Continue helping the student with the information you already have.",
	}
}
