package regex

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

const matchTimeout = 250 * time.Millisecond

type Pattern struct {
	Expression *regexp2.Regexp
}

// Compile compiles a .NET-style pattern (lookarounds allowed).
func Compile(pattern string) (*Pattern, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	re.MatchTimeout = matchTimeout

	return &Pattern{Expression: re}, nil
}

// MustCompile is Compile for patterns known at build time.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func Check(s string, p *Pattern) (bool, error) {
	match, err := p.Expression.MatchString(s)
	if err != nil {
		return false, fmt.Errorf("match %q: %w", s, err)
	}
	return match, nil
}

// Submatch returns capture group n of the first match of p in s.
func Submatch(s string, p *Pattern, n int) (string, bool, error) {
	m, err := p.Expression.FindStringMatch(s)
	if err != nil {
		return "", false, fmt.Errorf("match %q: %w", s, err)
	}
	if m == nil {
		return "", false, nil
	}

	g := m.GroupByNumber(n)
	if g == nil || len(g.Captures) == 0 {
		return "", false, nil
	}

	return g.String(), true, nil
}

// ReplaceAll replaces every match of p in s with repl.
func ReplaceAll(s string, p *Pattern, repl string) (string, error) {
	out, err := p.Expression.Replace(s, repl, -1, -1)
	if err != nil {
		return s, fmt.Errorf("replace in %q: %w", s, err)
	}
	return out, nil
}
