package wrap

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/routewrap/internal/errors"
	"github.com/vango-dev/routewrap/internal/link"
	"github.com/vango-dev/routewrap/internal/route"
	"github.com/vango-dev/routewrap/internal/templates"
)

const defaultTracerName = "routewrap"

// Status is the outcome of one transform.
type Status int

const (
	// StatusTransformed means the output is the instrumented module.
	StatusTransformed Status = iota

	// StatusExcluded means an exclusion rule matched and the input was returned.
	StatusExcluded

	// StatusFallback means an error occurred and the input was returned.
	StatusFallback
)

func (s Status) String() string {
	switch s {
	case StatusTransformed:
		return "transformed"
	case StatusExcluded:
		return "excluded"
	default:
		return "fallback"
	}
}

// Options configures a Transformer.
type Options struct {
	// RoutesDir is the routed-files root. Required.
	RoutesDir string

	// MiddlewareDir overrides where middleware files are looked up.
	// Default: the parent of RoutesDir.
	MiddlewareDir string

	// Extensions matches accepted file extensions.
	// Default: route.ExtensionPattern(route.DefaultExtensions)
	Extensions *regexp.Regexp

	// Exclude lists routes that are never instrumented. May be nil.
	Exclude *route.RuleSet

	// Templates are the wrapper templates. Required.
	Templates *templates.Set

	// Logger receives the fallback warnings. Default: slog.Default()
	Logger *slog.Logger

	// Metrics is optional.
	Metrics *Metrics

	// TracerName is the OpenTelemetry tracer name (default: "routewrap").
	TracerName string
}

// Input is one file handed over by the host build.
type Input struct {
	ResourcePath string
	Code         string
	Map          []byte
}

// Output is what goes back to the host build.
type Output struct {
	Code   string
	Map    []byte
	Status Status

	// Route is set whenever classification succeeded.
	Route route.Descriptor

	// Err is the cause of a fallback.
	Err error
}

// Transformer instruments route files. It holds no mutable state and is safe
// for concurrent use.
type Transformer struct {
	classifier *route.Classifier
	exclude    *route.RuleSet
	templates  *templates.Set
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer
}

// New validates opts and creates a Transformer.
func New(opts Options) (*Transformer, error) {
	if opts.RoutesDir == "" {
		return nil, errors.New("E230").WithDetail("routes directory is not set")
	}
	if opts.Templates == nil {
		return nil, errors.New("E230").WithDetail("templates are not loaded")
	}

	root, err := filepath.Abs(opts.RoutesDir)
	if err != nil {
		return nil, errors.New("E230").WithDetail(opts.RoutesDir).Wrap(err)
	}

	ext := opts.Extensions
	if ext == nil {
		if ext, err = route.ExtensionPattern(nil); err != nil {
			return nil, err
		}
	}

	var copts []route.Option
	if opts.MiddlewareDir != "" {
		dir, err := filepath.Abs(opts.MiddlewareDir)
		if err != nil {
			return nil, errors.New("E230").WithDetail(opts.MiddlewareDir).Wrap(err)
		}
		copts = append(copts, route.WithMiddlewareDir(dir))
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracerName := opts.TracerName
	if tracerName == "" {
		tracerName = defaultTracerName
	}

	return &Transformer{
		classifier: route.NewClassifier(root, ext, copts...),
		exclude:    opts.Exclude,
		templates:  opts.Templates,
		logger:     logger,
		metrics:    opts.Metrics,
		tracer:     otel.Tracer(tracerName),
	}, nil
}

// Classifier returns the route classifier in use.
func (t *Transformer) Classifier() *route.Classifier {
	return t.classifier
}

// Excluded reports whether route is excluded from instrumentation.
func (t *Transformer) Excluded(r string) bool {
	return t.exclude.Excluded(r)
}

// Transform instruments one file. It never fails: on any error the input is
// returned unchanged with StatusFallback and a single warning is logged.
func (t *Transformer) Transform(ctx context.Context, in Input) (out Output) {
	ctx, span := t.tracer.Start(ctx, "routewrap.transform",
		trace.WithAttributes(attribute.String("routewrap.file", in.ResourcePath)),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			out = t.fallback(span, in, out.Route, fmt.Errorf("panic: %v", r))
		}
		span.SetAttributes(attribute.String("routewrap.status", out.Status.String()))
	}()

	path := in.ResourcePath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	desc, err := t.classifier.Classify(path)
	if err != nil {
		return t.fallback(span, in, route.Descriptor{RawPath: in.ResourcePath}, err)
	}
	desc.RawPath = in.ResourcePath
	span.SetAttributes(
		attribute.String("routewrap.route", desc.Route),
		attribute.String("routewrap.role", desc.Role.String()),
	)

	if t.exclude.Excluded(desc.Route) {
		t.metrics.observeFile(desc.Role.String(), StatusExcluded.String())
		return Output{Code: in.Code, Map: in.Map, Status: StatusExcluded, Route: desc}
	}

	wrapper, err := t.templates.Render(desc.Role, desc.Route)
	if err != nil {
		return t.fallback(span, in, desc, err)
	}

	start := time.Now()
	res, err := link.Link(ctx, link.Request{
		WrapperName: templates.WrapperModule,
		WrapperCode: wrapper,
		TargetName:  templates.TargetModule,
		TargetPath:  path,
		TargetCode:  in.Code,
		TargetMap:   in.Map,
	})
	t.metrics.observeLink(time.Since(start).Seconds())
	if err != nil {
		return t.fallback(span, in, desc, err)
	}

	t.metrics.observeFile(desc.Role.String(), StatusTransformed.String())
	return Output{Code: res.Code, Map: res.Map, Status: StatusTransformed, Route: desc}
}

// TransformAsync runs Transform on its own goroutine and delivers the result
// to done exactly once.
func (t *Transformer) TransformAsync(ctx context.Context, in Input, done func(Output)) {
	go func() {
		done(t.Transform(ctx, in))
	}()
}

func (t *Transformer) fallback(span trace.Span, in Input, desc route.Descriptor, err error) Output {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	t.logger.Warn("route file left uninstrumented",
		"file", in.ResourcePath,
		"error", err,
	)

	role := "unknown"
	if desc.Route != "" {
		role = desc.Role.String()
	}
	t.metrics.observeFile(role, StatusFallback.String())
	t.metrics.observeFallback(errors.CodeOf(err))

	return Output{Code: in.Code, Map: in.Map, Status: StatusFallback, Route: desc, Err: err}
}
