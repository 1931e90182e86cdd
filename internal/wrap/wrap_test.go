package wrap

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	"go.uber.org/goleak"

	"github.com/vango-dev/routewrap/internal/errors"
	"github.com/vango-dev/routewrap/internal/route"
	"github.com/vango-dev/routewrap/internal/templates"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	root    string
	tr      *Transformer
	logs    *bytes.Buffer
	metrics *Metrics
	reg     *prometheus.Registry
}

func newFixture(t *testing.T, exclude ...string) *fixture {
	t.Helper()

	project := t.TempDir()
	root := filepath.Join(project, "pages")
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatal(err)
	}

	set, err := templates.Load()
	if err != nil {
		t.Fatal(err)
	}
	rules, err := route.ParseRules(exclude)
	if err != nil {
		t.Fatal(err)
	}

	logs := &bytes.Buffer{}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(WithRegistry(reg))

	tr, err := New(Options{
		RoutesDir: root,
		Exclude:   rules,
		Templates: set,
		Logger:    slog.New(slog.NewTextHandler(logs, nil)),
		Metrics:   metrics,
	})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	return &fixture{root: root, tr: tr, logs: logs, metrics: metrics, reg: reg}
}

func (f *fixture) path(rel string) string {
	return filepath.Join(f.root, filepath.FromSlash(rel))
}

func TestNew_Validation(t *testing.T) {
	set, _ := templates.Load()

	if _, err := New(Options{Templates: set}); errors.CodeOf(err) != "E230" {
		t.Errorf("missing routes dir: err = %v, want E230", err)
	}
	if _, err := New(Options{RoutesDir: "pages"}); errors.CodeOf(err) != "E230" {
		t.Errorf("missing templates: err = %v, want E230", err)
	}
}

func TestTransform_Page(t *testing.T) {
	f := newFixture(t)
	in := Input{
		ResourcePath: f.path("blog/[slug].tsx"),
		Code:         "export const revalidate = 60;\nexport default function Post() { return null; }\n",
	}

	out := f.tr.Transform(context.Background(), in)
	if out.Status != StatusTransformed {
		t.Fatalf("Status = %v, err = %v", out.Status, out.Err)
	}
	if out.Route.Route != "/blog/[slug]" || out.Route.Role != route.RolePage {
		t.Errorf("Route = %+v", out.Route)
	}
	if strings.Contains(out.Code, "export *") {
		t.Errorf("wildcard re-export survived:\n%s", out.Code)
	}
	if !strings.Contains(out.Code, "revalidate") {
		t.Errorf("named export lost:\n%s", out.Code)
	}
	if len(out.Map) == 0 {
		t.Error("no map")
	}
	if f.logs.Len() != 0 {
		t.Errorf("unexpected logs: %s", f.logs)
	}

	if got := testutil.ToFloat64(f.metrics.filesTotal.WithLabelValues("page", "transformed")); got != 1 {
		t.Errorf("files_total{page,transformed} = %v, want 1", got)
	}
}

func TestTransform_APIRoute(t *testing.T) {
	f := newFixture(t)
	out := f.tr.Transform(context.Background(), Input{
		ResourcePath: f.path("api/users.ts"),
		Code:         "export default function handler(req: any, res: any) { res.end(); }\n",
	})
	if out.Status != StatusTransformed {
		t.Fatalf("Status = %v, err = %v", out.Status, out.Err)
	}
	if out.Route.Role != route.RoleAPI {
		t.Errorf("Role = %v, want api", out.Route.Role)
	}
	if !strings.Contains(out.Code, "wrapApiHandler") {
		t.Errorf("api wrapper not applied:\n%s", out.Code)
	}
}

func TestTransform_Middleware(t *testing.T) {
	f := newFixture(t)
	out := f.tr.Transform(context.Background(), Input{
		ResourcePath: filepath.Join(filepath.Dir(f.root), "middleware.ts"),
		Code:         "export function middleware() {}\n",
	})
	if out.Status != StatusTransformed {
		t.Fatalf("Status = %v, err = %v", out.Status, out.Err)
	}
	if out.Route.Role != route.RoleMiddleware || out.Route.Route != "/" {
		t.Errorf("Route = %+v", out.Route)
	}
}

func TestTransform_Excluded(t *testing.T) {
	f := newFixture(t, "/admin*")
	in := Input{
		ResourcePath: f.path("admin/settings.tsx"),
		Code:         "export default 1 // keep me\n",
		Map:          []byte(`{"version":3}`),
	}

	out := f.tr.Transform(context.Background(), in)
	if out.Status != StatusExcluded {
		t.Fatalf("Status = %v", out.Status)
	}
	if out.Code != in.Code || !bytes.Equal(out.Map, in.Map) {
		t.Error("excluded file was modified")
	}
	if f.logs.Len() != 0 {
		t.Errorf("exclusion must not log: %s", f.logs)
	}
}

func TestTransform_Fallback(t *testing.T) {
	tests := []struct {
		name string
		rel  string
		code string
		want string
	}{
		{"syntax error", "broken.js", "export const = ;\n", "E210"},
		{"outside routes", "../lib/util.ts", "export const a = 1;\n", "E201"},
		{"wrong extension", "styles.css", "body {}\n", "E202"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := Input{ResourcePath: f.path(tt.rel), Code: tt.code}

			out := f.tr.Transform(context.Background(), in)
			if out.Status != StatusFallback {
				t.Fatalf("Status = %v", out.Status)
			}
			if out.Code != in.Code {
				t.Error("fallback must return the input unchanged")
			}
			if code := errors.CodeOf(out.Err); code != tt.want {
				t.Errorf("Err code = %q, want %q (%v)", code, tt.want, out.Err)
			}

			logged := f.logs.String()
			if strings.Count(logged, "level=WARN") != 1 {
				t.Errorf("want exactly one warning, got:\n%s", logged)
			}
			if !strings.Contains(logged, filepath.Base(in.ResourcePath)) {
				t.Errorf("warning does not name the file:\n%s", logged)
			}
			if got := testutil.ToFloat64(f.metrics.fallbacks.WithLabelValues(tt.want)); got != 1 {
				t.Errorf("fallbacks_total{%s} = %v, want 1", tt.want, got)
			}
		})
	}
}

func TestTransform_RecoversPanic(t *testing.T) {
	logs := &bytes.Buffer{}
	ext, _ := route.ExtensionPattern(nil)
	tr := &Transformer{
		classifier: route.NewClassifier(filepath.Join(t.TempDir(), "pages"), ext),
		logger:     slog.New(slog.NewTextHandler(logs, nil)),
		tracer:     otel.Tracer(defaultTracerName),
	}

	in := Input{ResourcePath: filepath.Join(tr.classifier.RootDir(), "index.js"), Code: "export default 1;"}
	out := tr.Transform(context.Background(), in)

	if out.Status != StatusFallback || out.Code != in.Code {
		t.Fatalf("Status = %v, Code = %q", out.Status, out.Code)
	}
	if !strings.Contains(logs.String(), "panic") {
		t.Errorf("panic not reported: %s", logs)
	}
}

func TestTransformAsync(t *testing.T) {
	f := newFixture(t)
	done := make(chan Output, 2)

	f.tr.TransformAsync(context.Background(), Input{
		ResourcePath: f.path("index.js"),
		Code:         "export default function Home() {}\n",
	}, func(out Output) { done <- out })

	select {
	case out := <-done:
		if out.Status != StatusTransformed {
			t.Errorf("Status = %v, err = %v", out.Status, out.Err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("callback not invoked")
	}

	select {
	case <-done:
		t.Error("callback invoked twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.observeFile("page", "transformed")
	m.observeLink(1)
	m.observeFallback("")
}
