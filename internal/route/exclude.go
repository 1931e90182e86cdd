package route

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/vango-dev/routewrap/internal/errors"
)

// RegexpPrefix marks a rule as a regular expression.
const RegexpPrefix = "re:"

type ruleKind int

const (
	ruleExact ruleKind = iota
	ruleGlob
	ruleSubtree
	ruleRegexp
)

type rule struct {
	raw  string
	kind ruleKind
	// pattern is the glob (ruleGlob) or the subtree base (ruleSubtree).
	pattern string
	re      *regexp.Regexp
}

// RuleSet is an ordered, read-only list of exclusion rules.
type RuleSet struct {
	rules []rule
}

// ParseRules compiles raw exclusion rules. Rules are:
//   - "re:<expr>": regular expression, matched anywhere in the route
//   - a rule ending in a segment followed by "*" ("/admin*"): the route and
//     its subtree, but not siblings sharing the prefix
//   - any other rule containing "*": doublestar glob
//   - anything else: exact match
func ParseRules(raw []string) (*RuleSet, error) {
	set := &RuleSet{rules: make([]rule, 0, len(raw))}
	for _, r := range raw {
		compiled, err := parseRule(r)
		if err != nil {
			return nil, err
		}
		set.rules = append(set.rules, compiled)
	}
	return set, nil
}

func parseRule(raw string) (rule, error) {
	if strings.TrimSpace(raw) == "" {
		return rule{}, errors.New("E231").WithDetail("empty rule")
	}

	if expr, ok := strings.CutPrefix(raw, RegexpPrefix); ok {
		re, err := regexp.Compile(expr)
		if err != nil {
			return rule{}, errors.New("E231").
				WithDetail(raw).
				WithSuggestion("Regular expressions use Go RE2 syntax").
				Wrap(err)
		}
		return rule{raw: raw, kind: ruleRegexp, re: re}, nil
	}

	if !strings.Contains(raw, "*") {
		return rule{raw: raw, kind: ruleExact}, nil
	}

	if !doublestar.ValidatePattern(raw) {
		return rule{}, errors.New("E231").WithDetail(raw + " is not a valid glob")
	}

	if base, ok := subtreeBase(raw); ok {
		return rule{raw: raw, kind: ruleSubtree, pattern: base}, nil
	}
	return rule{raw: raw, kind: ruleGlob, pattern: raw}, nil
}

// subtreeBase reports whether raw is "<base>*" with a single trailing star
// glued to a segment name.
func subtreeBase(raw string) (string, bool) {
	if !strings.HasSuffix(raw, "*") {
		return "", false
	}
	base := strings.TrimSuffix(raw, "*")
	if base == "" || strings.HasSuffix(base, "/") || strings.HasSuffix(base, "*") {
		return "", false
	}
	return base, true
}

// Excluded reports whether route matches any rule. A nil set excludes nothing.
func (s *RuleSet) Excluded(route string) bool {
	if s == nil {
		return false
	}
	for _, r := range s.rules {
		if r.match(route) {
			return true
		}
	}
	return false
}

// Len returns the number of rules.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Rules returns the rules as written.
func (s *RuleSet) Rules() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.raw
	}
	return out
}

func (r rule) match(route string) bool {
	switch r.kind {
	case ruleRegexp:
		return r.re.MatchString(route)
	case ruleGlob:
		ok, _ := doublestar.Match(r.pattern, route)
		return ok
	case ruleSubtree:
		if ok, _ := doublestar.Match(r.pattern, route); ok {
			return true
		}
		ok, _ := doublestar.Match(r.pattern+"/**", route)
		return ok
	default:
		return route == r.raw
	}
}
