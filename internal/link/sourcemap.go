package link

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/vango-dev/routewrap/internal/errors"
)

const inlineMapPrefix = "//# sourceMappingURL=data:application/json;base64,"

var sourceMapCommentRe = regexp.MustCompile(`(?m)^[ \t]*//[#@] sourceMappingURL=.*$`)

// preparedTarget is the target module as it is handed to the bundler.
type preparedTarget struct {
	code  string
	shift int
	style ExportStyle
}

// sourceMap is the subset of a v3 source map that survives chaining.
type sourceMap struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
	Sections       []any     `json:"sections,omitempty"`
}

// prepareTarget normalizes CommonJS, hoists static requires, strips stale map comments and attaches
// an inline map that points at the user's file.
func prepareTarget(ctx context.Context, req Request) (preparedTarget, error) {
	code := stripSourceMapComments(req.TargetCode)

	exports, err := AnalyzeExports(ctx, req.TargetPath, []byte(code))
	if err != nil {
		return preparedTarget{}, err
	}

	pt := preparedTarget{code: code, style: exports.Style}
	switch {
	case exports.Style == StyleCommonJS:
		pt.code = normalizeCommonJS(code, exports)
		pt.shift = cjsPreludeLines
	case len(exports.Requires) > 0:
		prelude, body := rewriteRequires(code, exports.Requires)
		pt.code = prelude + "\n" + body
		pt.shift = cjsPreludeLines
	}

	var sm *sourceMap
	if len(req.TargetMap) > 0 {
		sm, err = parseSourceMap(req.TargetMap)
		if err != nil {
			return preparedTarget{}, err
		}
	}
	// A map without mappings says nothing about positions.
	if sm == nil || sm.Mappings == "" {
		sm = identityMap(req.TargetPath, req.TargetCode)
	}
	if pt.shift > 0 {
		sm.Mappings = strings.Repeat(";", pt.shift) + sm.Mappings
	}

	pt.code, err = attachSourceMap(pt.code, sm)
	if err != nil {
		return preparedTarget{}, err
	}
	return pt, nil
}

// stripSourceMapComments blanks sourceMappingURL comments in place so line
// numbers stay put.
func stripSourceMapComments(code string) string {
	return sourceMapCommentRe.ReplaceAllString(code, "")
}

func parseSourceMap(data []byte) (*sourceMap, error) {
	var sm sourceMap
	if err := json.Unmarshal(data, &sm); err != nil {
		return nil, errors.New("E213").Wrap(err)
	}
	switch {
	case len(sm.Sections) > 0:
		return nil, errors.New("E213").WithDetail("index maps are not supported")
	case sm.Version != 3:
		return nil, errors.New("E213").WithDetail(fmt.Sprintf("version %d", sm.Version))
	}
	if sm.Names == nil {
		sm.Names = []string{}
	}
	return &sm, nil
}

// identityMap maps every line of code to the same line of path, column zero.
func identityMap(path, code string) *sourceMap {
	lines := strings.Count(code, "\n") + 1

	var b strings.Builder
	b.WriteString("AAAA")
	for i := 1; i < lines; i++ {
		b.WriteString(";AACA")
	}

	return &sourceMap{
		Version:        3,
		Sources:        []string{path},
		SourcesContent: []*string{&code},
		Names:          []string{},
		Mappings:       b.String(),
	}
}

func attachSourceMap(code string, sm *sourceMap) (string, error) {
	sm.Sections = nil
	data, err := json.Marshal(sm)
	if err != nil {
		return "", errors.New("E213").Wrap(err)
	}
	if !strings.HasSuffix(code, "\n") {
		code += "\n"
	}
	return code + inlineMapPrefix + base64.StdEncoding.EncodeToString(data) + "\n", nil
}
