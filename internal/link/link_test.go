package link

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/routewrap/internal/errors"
	"github.com/vango-dev/routewrap/internal/route"
	"github.com/vango-dev/routewrap/internal/templates"
)

func request(t *testing.T, role route.Role, routePath, targetPath, code string) Request {
	t.Helper()
	set, err := templates.Load()
	if err != nil {
		t.Fatal(err)
	}
	wrapper, err := set.Render(role, routePath)
	if err != nil {
		t.Fatal(err)
	}
	return Request{
		WrapperName: templates.WrapperModule,
		WrapperCode: wrapper,
		TargetName:  templates.TargetModule,
		TargetPath:  targetPath,
		TargetCode:  code,
	}
}

func TestLink_FlattensWildcardReExport(t *testing.T) {
	src := `import { helper } from "../../utils/helper";
export function getServerSideProps() { return { props: { v: helper() } }; }
export const config = { runtime: "nodejs" };
export const revalidate = 10;
export default function Page() { return null; }
`
	req := request(t, route.RolePage, "/blog/[slug]", filepath.Join("pages", "blog", "[slug].tsx"), src)

	res, err := Link(context.Background(), req)
	if err != nil {
		t.Fatalf("Link error: %v", err)
	}

	if strings.Contains(res.Code, "export *") {
		t.Errorf("output still contains a wildcard re-export:\n%s", res.Code)
	}
	for _, name := range []string{"config", "revalidate", "getServerSideProps", "getStaticProps", "default"} {
		if !strings.Contains(res.Code, name) {
			t.Errorf("output does not export %q:\n%s", name, res.Code)
		}
	}
	if !strings.Contains(res.Code, `"../../utils/helper"`) {
		t.Errorf("relative import was rewritten:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, `"@routewrap/runtime"`) {
		t.Errorf("runtime import missing:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, "'/blog/[slug]'") && !strings.Contains(res.Code, `"/blog/[slug]"`) {
		t.Errorf("route literal missing:\n%s", res.Code)
	}
	if strings.Contains(res.Code, "sourceMappingURL") {
		t.Errorf("output should not reference its map:\n%s", res.Code)
	}
}

func TestLink_SourceMapPointsAtOriginal(t *testing.T) {
	src := "export const value = 1;\nexport default function Handler() {}\n"
	req := request(t, route.RoleAPI, "/api/hello", filepath.Join("pages", "api", "hello.ts"), src)

	res, err := Link(context.Background(), req)
	if err != nil {
		t.Fatalf("Link error: %v", err)
	}
	if len(res.Map) == 0 {
		t.Fatal("no source map emitted")
	}

	var sm struct {
		Version int      `json:"version"`
		Sources []string `json:"sources"`
	}
	if err := json.Unmarshal(res.Map, &sm); err != nil {
		t.Fatalf("invalid map: %v", err)
	}
	if sm.Version != 3 {
		t.Errorf("version = %d, want 3", sm.Version)
	}

	found := false
	for _, s := range sm.Sources {
		if strings.HasSuffix(s, "hello.ts") {
			found = true
		}
	}
	if !found {
		t.Errorf("sources = %v, want one ending in hello.ts", sm.Sources)
	}
}

func TestLink_CommonJSTarget(t *testing.T) {
	src := `const helper = require("./helper");
module.exports = {
  handler(req, res) { res.end(helper()); },
  config: { api: { bodyParser: false } },
};
`
	req := request(t, route.RoleAPI, "/api/legacy", filepath.Join("pages", "api", "legacy.js"), src)

	res, err := Link(context.Background(), req)
	if err != nil {
		t.Fatalf("Link error: %v", err)
	}
	for _, name := range []string{"config", "handler"} {
		if !strings.Contains(res.Code, " as "+name) && !strings.Contains(res.Code, name+",") {
			t.Errorf("CommonJS export %q not surfaced:\n%s", name, res.Code)
		}
	}
	if strings.Contains(res.Code, "export *") {
		t.Errorf("wildcard re-export survived:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, `from "./helper"`) {
		t.Errorf("require was not hoisted to a static import of \"./helper\":\n%s", res.Code)
	}
	if strings.Contains(res.Code, "__require(") {
		t.Errorf("output falls back to the require shim:\n%s", res.Code)
	}
}

func TestLink_CommonJSNestedRequireKeepsSpecifier(t *testing.T) {
	src := `const { helper } = require('../../utils/helper');
exports.handler = function (req, res) { res.end(helper()); };
`
	req := request(t, route.RoleAPI, "/a/b/legacy", filepath.Join("pages", "a", "b", "legacy.js"), src)

	res, err := Link(context.Background(), req)
	if err != nil {
		t.Fatalf("Link error: %v", err)
	}
	if !strings.Contains(res.Code, `from "../../utils/helper"`) {
		t.Errorf("relative require specifier changed:\n%s", res.Code)
	}
	if strings.Contains(res.Code, "__require(") {
		t.Errorf("output falls back to the require shim:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, " as handler") && !strings.Contains(res.Code, "handler,") {
		t.Errorf("CommonJS export handler not surfaced:\n%s", res.Code)
	}
}

var helperExportRe = regexp.MustCompile(`export\s*\{[^}]*\bhelper\b[^}]*\}`)

func TestLink_PreservesNestedRelativeReExport(t *testing.T) {
	src := `export { helper } from '../../utils/helper';
export default function Page() { return null; }
`
	req := request(t, route.RolePage, "/a/b/c", filepath.Join("pages", "a", "b", "c.ts"), src)

	res, err := Link(context.Background(), req)
	if err != nil {
		t.Fatalf("Link error: %v", err)
	}
	if strings.Contains(res.Code, "export *") {
		t.Errorf("wildcard re-export survived:\n%s", res.Code)
	}
	if !helperExportRe.MatchString(res.Code) {
		t.Errorf("helper is not a named export:\n%s", res.Code)
	}
	if !strings.Contains(res.Code, `"../../utils/helper"`) {
		t.Errorf("re-export specifier changed:\n%s", res.Code)
	}
	for _, rewritten := range []string{`"../utils/helper"`, `"utils/helper"`, `"./utils/helper"`} {
		if strings.Contains(res.Code, rewritten) {
			t.Errorf("specifier rewritten to %s:\n%s", rewritten, res.Code)
		}
	}
}

func TestLink_SyntaxError(t *testing.T) {
	src := "export const broken = ;\n"
	req := request(t, route.RolePage, "/broken", filepath.Join("pages", "broken.js"), src)

	_, err := Link(context.Background(), req)
	if err == nil {
		t.Fatal("expected an error")
	}
	if code := errors.CodeOf(err); code != "E210" {
		t.Errorf("code = %q, want E210", code)
	}
}

func TestLink_SyntaxErrorShowsLinkedSource(t *testing.T) {
	src := "exports.ok = 1;\nexports.broken = ;\n"
	req := request(t, route.RoleAPI, "/api/broken", filepath.Join("pages", "api", "broken.js"), src)

	_, err := Link(context.Background(), req)
	var re *errors.Error
	if !stderrors.As(err, &re) {
		t.Fatalf("err = %v, want *errors.Error", err)
	}
	if re.Location == nil || re.Location.Line != 2 {
		t.Fatalf("Location = %v, want line 2 of the user file", re.Location)
	}
	if re.Location.File != req.TargetPath {
		t.Errorf("File = %q, want %q", re.Location.File, req.TargetPath)
	}
	found := false
	for _, l := range re.Context {
		if l == "exports.broken = ;" {
			found = true
		}
	}
	if !found {
		t.Errorf("Context = %q, want the failing line from the linked source", re.Context)
	}
}

func TestLinkError_Notes(t *testing.T) {
	req := Request{TargetName: "target", TargetPath: "pages/a.js", TargetCode: "a\nb\nc\n"}
	target := preparedTarget{shift: 1}
	msgs := []api.Message{
		{
			Text:     "first",
			Location: &api.Location{File: "routewrap-virtual:target", Line: 3, Column: 0},
			Notes:    []api.Note{{Text: "declared here"}},
		},
		{Text: "second", Location: &api.Location{File: "routewrap-virtual:target", Line: 4, Column: 2}},
		{Text: "elsewhere", Location: &api.Location{File: "wrapper", Line: 1}},
	}

	var re *errors.Error
	if !stderrors.As(linkError(req, target, msgs), &re) {
		t.Fatal("want *errors.Error")
	}
	want := []string{"declared here", "pages/a.js:3:3: second", "elsewhere"}
	if diff := cmp.Diff(want, re.Notes); diff != "" {
		t.Errorf("Notes mismatch (-want +got):\n%s", diff)
	}
	if re.Location == nil || re.Location.Line != 2 || re.Location.Column != 1 {
		t.Errorf("Location = %v, want pages/a.js:2:1", re.Location)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, re.Context); diff != "" {
		t.Errorf("Context mismatch (-want +got):\n%s", diff)
	}
}

func TestLink_RequestValidation(t *testing.T) {
	req := Request{WrapperName: "same", TargetName: "same"}
	if _, err := Link(context.Background(), req); errors.CodeOf(err) != "E210" {
		t.Errorf("distinct names: err = %v, want E210", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Link(ctx, request(t, route.RolePage, "/", "index.js", "export default 1;")); err == nil {
		t.Error("cancelled context should fail")
	}
}

func TestLink_InvalidInputMap(t *testing.T) {
	req := request(t, route.RolePage, "/", filepath.Join("pages", "index.js"), "export default 1;\n")
	req.TargetMap = []byte(`{"version":3,"sections":[{"offset":{"line":0,"column":0},"map":{}}]}`)

	_, err := Link(context.Background(), req)
	if code := errors.CodeOf(err); code != "E213" {
		t.Errorf("code = %q, want E213", code)
	}
}

func TestLoaderFor(t *testing.T) {
	tests := map[string]api.Loader{
		"a.ts":  api.LoaderTS,
		"a.mts": api.LoaderTS,
		"a.tsx": api.LoaderTSX,
		"a.js":  api.LoaderJSX,
		"a.jsx": api.LoaderJSX,
		"a.mjs": api.LoaderJSX,
	}
	for path, want := range tests {
		if got := loaderFor(path); got != want {
			t.Errorf("loaderFor(%q) = %v, want %v", path, got, want)
		}
	}
}
