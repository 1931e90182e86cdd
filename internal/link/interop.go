package link

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/vango-dev/routewrap/internal/errors"
)

// ExportStyle is how a module exposes its bindings.
type ExportStyle int

const (
	// StyleNone means no exports were found.
	StyleNone ExportStyle = iota

	// StyleESM means the module uses import or export statements.
	StyleESM

	// StyleCommonJS means the module assigns to module.exports or exports.
	StyleCommonJS
)

func (s ExportStyle) String() string {
	switch s {
	case StyleESM:
		return "esm"
	case StyleCommonJS:
		return "commonjs"
	default:
		return "none"
	}
}

// Exports is the result of AnalyzeExports.
type Exports struct {
	Style ExportStyle

	// Names are the CommonJS export names that are valid identifiers,
	// sorted. "default" and "__esModule" are never listed.
	Names []string

	// Requires are the require calls with a string literal argument, in
	// source order. ESM modules never list any.
	Requires []Require
}

// Require is one require("<specifier>") call.
type Require struct {
	// Start and End are the byte offsets of the whole call expression.
	Start, End uint32

	// Literal is the argument as written, quotes included.
	Literal string
}

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// cjsPrelude gives CommonJS code local module and exports bindings. The
// prelude, hoisted require imports included, must stay a single line: source
// maps are shifted by cjsPreludeLines.
const (
	cjsPrelude      = "var module = { exports: {} }, exports = module.exports;\n"
	cjsPreludeLines = 1
)

// requireInterop turns an import namespace back into what require would
// have returned: module.exports for CommonJS dependencies, the namespace
// otherwise.
const requireInterop = "function __routewrap_require__(ns) { var d = ns && ns.default;" +
	" return d != null && (typeof d === \"object\" || typeof d === \"function\") &&" +
	" Object.keys(ns).every(function (k) { return k === \"default\" || k in d; }) ? d : ns; } "

// functionNodes introduce a parameter scope.
var functionNodes = map[string]bool{
	"function":                       true,
	"function_declaration":           true,
	"function_expression":            true,
	"generator_function":             true,
	"generator_function_declaration": true,
	"arrow_function":                 true,
	"method_definition":              true,
}

func languageFor(path string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// AnalyzeExports classifies the export style of code. For CommonJS it lists
// the property names assigned on module.exports or exports.
func AnalyzeExports(ctx context.Context, path string, code []byte) (Exports, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(languageFor(path))

	tree, err := parser.ParseCtx(ctx, nil, code)
	if err != nil {
		return Exports{}, errors.New("E210").WithDetail("parsing " + path).Wrap(err)
	}
	defer tree.Close()

	root := tree.RootNode()
	for i := 0; i < int(root.NamedChildCount()); i++ {
		switch root.NamedChild(i).Type() {
		case "export_statement", "import_statement":
			return Exports{Style: StyleESM}, nil
		}
	}

	a := &cjsAnalyzer{src: code, names: make(map[string]struct{}), shadowed: make(map[string]int)}
	a.walk(root)
	if !a.commonJS {
		return Exports{Style: StyleNone, Requires: a.requires}, nil
	}

	names := make([]string, 0, len(a.names))
	for name := range a.names {
		if name == "default" || name == "__esModule" || !identRe.MatchString(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return Exports{Style: StyleCommonJS, Names: names, Requires: a.requires}, nil
}

type cjsAnalyzer struct {
	src      []byte
	commonJS bool
	names    map[string]struct{}
	requires []Require

	// shadowed counts enclosing functions declaring a parameter of that name.
	shadowed map[string]int
}

func (a *cjsAnalyzer) text(n *sitter.Node) string {
	return string(a.src[n.StartByte():n.EndByte()])
}

func (a *cjsAnalyzer) walk(n *sitter.Node) {
	switch n.Type() {
	case "assignment_expression":
		a.assignment(n)
	case "call_expression":
		a.defineProperty(n)
		a.require(n)
	case "member_expression":
		if a.isExportsObject(n) {
			a.commonJS = true
		}
	}

	var params []string
	if functionNodes[n.Type()] {
		params = a.parameterNames(n)
		for _, p := range params {
			a.shadowed[p]++
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		a.walk(n.NamedChild(i))
	}
	for _, p := range params {
		a.shadowed[p]--
	}
}

// free reports whether n is an identifier named name that no enclosing
// function parameter shadows.
func (a *cjsAnalyzer) free(n *sitter.Node, name string) bool {
	return n != nil && n.Type() == "identifier" && a.text(n) == name && a.shadowed[name] == 0
}

// parameterNames lists the plain identifiers fn declares as parameters.
func (a *cjsAnalyzer) parameterNames(fn *sitter.Node) []string {
	if p := fn.ChildByFieldName("parameter"); p != nil && p.Type() == "identifier" {
		return []string{a.text(p)}
	}
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		for _, field := range []string{"pattern", "left"} {
			if inner := p.ChildByFieldName(field); inner != nil {
				p = inner
				break
			}
		}
		if p.Type() == "identifier" {
			names = append(names, a.text(p))
		}
	}
	return names
}

// isExportsObject reports whether n is a free `exports` or `module.exports`.
func (a *cjsAnalyzer) isExportsObject(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "identifier":
		return a.free(n, "exports")
	case "member_expression":
		prop := n.ChildByFieldName("property")
		return prop != nil && a.free(n.ChildByFieldName("object"), "module") &&
			a.text(prop) == "exports"
	}
	return false
}

// require records require("<literal>") calls on the free require binding.
func (a *cjsAnalyzer) require(n *sitter.Node) {
	if !a.free(n.ChildByFieldName("function"), "require") {
		return
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() != 1 {
		return
	}
	arg := args.NamedChild(0)
	lit := a.text(arg)
	if arg.Type() != "string" || strings.ContainsAny(lit, "\r\n") {
		return
	}
	a.requires = append(a.requires, Require{Start: n.StartByte(), End: n.EndByte(), Literal: lit})
}

func (a *cjsAnalyzer) assignment(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil {
		return
	}

	switch left.Type() {
	case "member_expression":
		// module.exports = ...
		if a.isExportsObject(left) {
			a.commonJS = true
			if right != nil && right.Type() == "object" {
				a.objectKeys(right)
			}
			return
		}
		// exports.x = ... / module.exports.x = ...
		if obj := left.ChildByFieldName("object"); a.isExportsObject(obj) {
			a.commonJS = true
			if prop := left.ChildByFieldName("property"); prop != nil {
				a.add(a.text(prop))
			}
		}
	case "subscript_expression":
		// exports["x"] = ...
		if obj := left.ChildByFieldName("object"); a.isExportsObject(obj) {
			a.commonJS = true
			if idx := left.ChildByFieldName("index"); idx != nil && idx.Type() == "string" {
				a.add(unquote(a.text(idx)))
			}
		}
	}
}

// defineProperty handles Object.defineProperty(exports, "x", ...).
func (a *cjsAnalyzer) defineProperty(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil || a.text(fn) != "Object.defineProperty" {
		return
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() < 2 {
		return
	}
	if !a.isExportsObject(args.NamedChild(0)) {
		return
	}
	a.commonJS = true
	if key := args.NamedChild(1); key.Type() == "string" {
		a.add(unquote(a.text(key)))
	}
}

func (a *cjsAnalyzer) objectKeys(obj *sitter.Node) {
	for i := 0; i < int(obj.NamedChildCount()); i++ {
		child := obj.NamedChild(i)
		switch child.Type() {
		case "shorthand_property_identifier":
			a.add(a.text(child))
		case "pair", "method_definition":
			field := "key"
			if child.Type() == "method_definition" {
				field = "name"
			}
			key := child.ChildByFieldName(field)
			if key == nil {
				continue
			}
			switch key.Type() {
			case "property_identifier":
				a.add(a.text(key))
			case "string":
				a.add(unquote(a.text(key)))
			}
		}
	}
}

func (a *cjsAnalyzer) add(name string) {
	if name != "" {
		a.names[name] = struct{}{}
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		return s[1 : len(s)-1]
	}
	return s
}

// rewriteRequires hoists the static require calls of code into namespace
// imports and replaces each call with an interop read of its namespace. The
// returned prelude has no line break; body keeps every line of code in place.
func rewriteRequires(code string, reqs []Require) (prelude, body string) {
	if len(reqs) == 0 {
		return "", code
	}

	var p, b strings.Builder
	bindings := make(map[string]string)
	last := 0
	for _, r := range reqs {
		ns, ok := bindings[r.Literal]
		if !ok {
			ns = fmt.Sprintf("__routewrap_req_%d__", len(bindings))
			bindings[r.Literal] = ns
			fmt.Fprintf(&p, "import * as %s from %s; ", ns, r.Literal)
		}
		b.WriteString(code[last:r.Start])
		b.WriteString("__routewrap_require__(" + ns + ")")
		last = int(r.End)
	}
	b.WriteString(code[last:])

	p.WriteString(requireInterop)
	return p.String(), b.String()
}

// normalizeCommonJS turns a CommonJS module into an ES module exporting its
// module.exports as default and each discovered name individually.
func normalizeCommonJS(code string, ex Exports) string {
	prelude, body := rewriteRequires(code, ex.Requires)
	names := ex.Names

	var b strings.Builder
	b.WriteString(prelude)
	b.WriteString(cjsPrelude)
	b.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\n")
	}

	b.WriteString("var __routewrap_cjs__ = module.exports;\n")
	b.WriteString("var __routewrap_default__ = __routewrap_cjs__ && __routewrap_cjs__.__esModule" +
		" ? __routewrap_cjs__.default : __routewrap_cjs__;\n")
	b.WriteString("export { __routewrap_default__ as default };\n")

	if len(names) == 0 {
		return b.String()
	}

	specs := make([]string, len(names))
	for i, name := range names {
		local := fmt.Sprintf("__routewrap_export_%d__", i)
		fmt.Fprintf(&b, "var %s = __routewrap_cjs__.%s;\n", local, name)
		specs[i] = local + " as " + name
	}
	b.WriteString("export { " + strings.Join(specs, ", ") + " };\n")
	return b.String()
}
