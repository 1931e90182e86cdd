package link

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/routewrap/internal/errors"
)

func TestAnalyzeExports(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		code  string
		style ExportStyle
		names []string
	}{
		{
			name:  "esm export",
			path:  "a.ts",
			code:  "export const a = 1;",
			style: StyleESM,
		},
		{
			name:  "esm import only",
			path:  "a.js",
			code:  "import x from 'y';\nx();",
			style: StyleESM,
		},
		{
			name:  "no exports",
			path:  "a.js",
			code:  "console.log(1);",
			style: StyleNone,
		},
		{
			name:  "module.exports object",
			path:  "a.js",
			code:  "module.exports = { b: 1, a, c() {}, 'd': 2, default: 3 };",
			style: StyleCommonJS,
			names: []string{"a", "b", "c", "d"},
		},
		{
			name:  "property assignments",
			path:  "a.js",
			code:  "exports.x = 1;\nmodule.exports.y = 2;\nexports['z'] = 3;\nexports['not-ident'] = 4;",
			style: StyleCommonJS,
			names: []string{"x", "y", "z"},
		},
		{
			name:  "defineProperty",
			path:  "a.js",
			code:  "Object.defineProperty(exports, '__esModule', { value: true });\nObject.defineProperty(exports, 'handler', { get() {} });",
			style: StyleCommonJS,
			names: []string{"handler"},
		},
		{
			name:  "module.exports function",
			path:  "a.js",
			code:  "module.exports = function handler() {};",
			style: StyleCommonJS,
			names: []string{},
		},
		{
			name:  "duplicates",
			path:  "a.ts",
			code:  "exports.a = 1; exports.a = 2;",
			style: StyleCommonJS,
			names: []string{"a"},
		},
		{
			name:  "exports parameter",
			path:  "a.js",
			code:  "function f(exports) {}",
			style: StyleNone,
		},
		{
			name:  "shadowed exports assignment",
			path:  "a.js",
			code:  "function install(exports) { exports.x = 1; }\ninstall({});",
			style: StyleNone,
		},
		{
			name:  "shadowed module in arrow",
			path:  "a.ts",
			code:  "const f = module => { module.exports = {}; };",
			style: StyleNone,
		},
		{
			name:  "exports passed as argument",
			path:  "a.js",
			code:  "register(exports);",
			style: StyleNone,
		},
		{
			name:  "outer exports after shadowing function",
			path:  "a.js",
			code:  "function f(exports) { exports.inner = 1; }\nexports.outer = 2;",
			style: StyleCommonJS,
			names: []string{"outer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AnalyzeExports(context.Background(), tt.path, []byte(tt.code))
			if err != nil {
				t.Fatal(err)
			}
			if got.Style != tt.style {
				t.Errorf("Style = %v, want %v", got.Style, tt.style)
			}
			if tt.style == StyleCommonJS {
				if diff := cmp.Diff(tt.names, got.Names); diff != "" {
					t.Errorf("Names mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestAnalyzeExports_Requires(t *testing.T) {
	code := "const { helper } = require('../../utils/helper');\n" +
		"const dyn = require(name);\n" +
		"function local(require) { return require('ignored'); }\n" +
		"module.exports = { helper, db: require(\"./db\") };\n"

	got, err := AnalyzeExports(context.Background(), "pages/a/b/legacy.js", []byte(code))
	if err != nil {
		t.Fatal(err)
	}

	var literals []string
	for _, r := range got.Requires {
		literals = append(literals, code[r.Start:r.End]+" "+r.Literal)
	}
	want := []string{
		`require('../../utils/helper') '../../utils/helper'`,
		`require("./db") "./db"`,
	}
	if diff := cmp.Diff(want, literals); diff != "" {
		t.Errorf("Requires mismatch (-want +got):\n%s", diff)
	}
}

func TestRewriteRequires(t *testing.T) {
	code := "const a = require('./a');\nconst b = require(\"./b\"), a2 = require('./a');\n"
	reqs := []Require{
		{Start: 10, End: 24, Literal: "'./a'"},
		{Start: 36, End: 50, Literal: `"./b"`},
		{Start: 57, End: 71, Literal: "'./a'"},
	}

	prelude, body := rewriteRequires(code, reqs)
	if strings.Contains(prelude, "\n") {
		t.Errorf("prelude spans lines: %q", prelude)
	}
	for _, want := range []string{
		"import * as __routewrap_req_0__ from './a';",
		`import * as __routewrap_req_1__ from "./b";`,
		"function __routewrap_require__(ns)",
	} {
		if !strings.Contains(prelude, want) {
			t.Errorf("prelude missing %q:\n%s", want, prelude)
		}
	}
	if strings.Count(prelude, "import * as") != 2 {
		t.Errorf("duplicate specifiers not merged:\n%s", prelude)
	}

	wantBody := "const a = __routewrap_require__(__routewrap_req_0__);\n" +
		"const b = __routewrap_require__(__routewrap_req_1__), a2 = __routewrap_require__(__routewrap_req_0__);\n"
	if body != wantBody {
		t.Errorf("body = %q", body)
	}
}

func TestNormalizeCommonJS(t *testing.T) {
	out := normalizeCommonJS("exports.a = 1;", Exports{Style: StyleCommonJS, Names: []string{"a", "b"}})

	if !strings.HasPrefix(out, cjsPrelude) {
		t.Error("prelude missing")
	}
	if n := strings.Count(cjsPrelude, "\n"); n != cjsPreludeLines {
		t.Errorf("prelude spans %d lines, want %d", n, cjsPreludeLines)
	}
	for _, want := range []string{
		"export { __routewrap_default__ as default };",
		"export { __routewrap_export_0__ as a, __routewrap_export_1__ as b };",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestStripSourceMapComments(t *testing.T) {
	in := "a();\n//# sourceMappingURL=a.js.map\nb();\n  //@ sourceMappingURL=old.map"
	got := stripSourceMapComments(in)
	if strings.Contains(got, "sourceMappingURL") {
		t.Errorf("comment survived: %q", got)
	}
	if strings.Count(got, "\n") != strings.Count(in, "\n") {
		t.Error("line count changed")
	}
}

func TestIdentityMap(t *testing.T) {
	sm := identityMap("pages/a.js", "a\nb\nc")
	if sm.Mappings != "AAAA;AACA;AACA" {
		t.Errorf("Mappings = %q", sm.Mappings)
	}
	if diff := cmp.Diff([]string{"pages/a.js"}, sm.Sources); diff != "" {
		t.Error(diff)
	}
}

func TestParseSourceMap(t *testing.T) {
	tests := []struct {
		name string
		data string
		ok   bool
	}{
		{"valid", `{"version":3,"sources":["a.ts"],"names":[],"mappings":"AAAA"}`, true},
		{"wrong version", `{"version":2,"sources":[],"mappings":"AAAA"}`, false},
		{"empty mappings", `{"version":3,"sources":[],"mappings":""}`, true},
		{"no mappings", `{"version":3,"sources":[]}`, true},
		{"not json", `nope`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSourceMap([]byte(tt.data))
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && errors.CodeOf(err) != "E213" {
				t.Errorf("err = %v, want E213", err)
			}
		})
	}
}

func TestPrepareTarget_ShiftsMapForCommonJS(t *testing.T) {
	pt, err := prepareTarget(context.Background(), Request{
		TargetPath: "pages/api/a.js",
		TargetCode: "exports.handler = function () {};\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	if pt.style != StyleCommonJS || pt.shift != cjsPreludeLines {
		t.Fatalf("style=%v shift=%d", pt.style, pt.shift)
	}

	idx := strings.LastIndex(pt.code, inlineMapPrefix)
	if idx < 0 {
		t.Fatal("no inline map attached")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(pt.code[idx+len(inlineMapPrefix):]))
	if err != nil {
		t.Fatal(err)
	}
	var sm sourceMap
	if err := json.Unmarshal(raw, &sm); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sm.Mappings, ";AAAA") {
		t.Errorf("Mappings = %q, want shifted by one line", sm.Mappings)
	}
}

func TestPrepareTarget_HoistsRequiresOnOneLine(t *testing.T) {
	pt, err := prepareTarget(context.Background(), Request{
		TargetPath: "pages/a/b/legacy.js",
		TargetCode: "const { helper } = require('../../utils/helper');\nhelper();\n",
	})
	if err != nil {
		t.Fatal(err)
	}
	if pt.style != StyleNone || pt.shift != cjsPreludeLines {
		t.Fatalf("style=%v shift=%d", pt.style, pt.shift)
	}

	lines := strings.Split(pt.code, "\n")
	if !strings.HasPrefix(lines[0], "import * as __routewrap_req_0__ from '../../utils/helper';") {
		t.Errorf("first line = %q", lines[0])
	}
	if lines[1] != "const { helper } = __routewrap_require__(__routewrap_req_0__);" {
		t.Errorf("second line = %q", lines[1])
	}
	if sm := inlineMap(t, pt.code); !strings.HasPrefix(sm.Mappings, ";AAAA") {
		t.Errorf("Mappings = %q, want shifted by one line", sm.Mappings)
	}
}

func TestPrepareTarget_EmptyInputMapUsesIdentity(t *testing.T) {
	pt, err := prepareTarget(context.Background(), Request{
		TargetPath: "pages/empty.js",
		TargetCode: "// nothing here\n",
		TargetMap:  []byte(`{"version":3,"sources":["empty.coffee"],"names":[],"mappings":""}`),
	})
	if err != nil {
		t.Fatalf("empty mappings should be accepted: %v", err)
	}
	sm := inlineMap(t, pt.code)
	if !strings.HasPrefix(sm.Mappings, "AAAA") {
		t.Errorf("Mappings = %q, want an identity map", sm.Mappings)
	}
	if diff := cmp.Diff([]string{"pages/empty.js"}, sm.Sources); diff != "" {
		t.Error(diff)
	}
}

func inlineMap(t *testing.T, code string) sourceMap {
	t.Helper()
	idx := strings.LastIndex(code, inlineMapPrefix)
	if idx < 0 {
		t.Fatal("no inline map attached")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(code[idx+len(inlineMapPrefix):]))
	if err != nil {
		t.Fatal(err)
	}
	var sm sourceMap
	if err := json.Unmarshal(raw, &sm); err != nil {
		t.Fatal(err)
	}
	return sm
}
