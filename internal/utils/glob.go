// internal/utils/glob.go
package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// Glob is a compiled URL pattern.
//
//	**     any characters, including '/'
//	*      any characters except '/'
//	{a,b}  one of the comma separated alternatives
//
// Every other character, '?' included, matches itself.
type Glob struct {
	pattern string
	re      *regexp.Regexp
}

// CompileGlob compiles a URL glob pattern.
func CompileGlob(pattern string) (*Glob, error) {
	if pattern == "" {
		return nil, fmt.Errorf("glob pattern cannot be empty")
	}

	var b strings.Builder
	b.WriteString("^")
	inGroup := false

	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '*' && i+1 < len(pattern) && pattern[i+1] == '*':
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString("[^/]*")
		case c == '{' && !inGroup:
			inGroup = true
			b.WriteString("(?:")
		case c == '}' && inGroup:
			inGroup = false
			b.WriteString(")")
		case c == ',' && inGroup:
			b.WriteString("|")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	if inGroup {
		return nil, fmt.Errorf("unterminated '{' in glob %q", pattern)
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("invalid glob %q: %w", pattern, err)
	}
	return &Glob{pattern: pattern, re: re}, nil
}

// MustCompileGlob is CompileGlob for patterns known at compile time.
func MustCompileGlob(pattern string) *Glob {
	g, err := CompileGlob(pattern)
	if err != nil {
		panic(err)
	}
	return g
}

// Match reports whether s matches the whole pattern.
func (g *Glob) Match(s string) bool {
	return g.re.MatchString(s)
}

// String returns the source pattern.
func (g *Glob) String() string {
	return g.pattern
}

// DevToolsPattern converts the glob into a Fetch.RequestPattern urlPattern.
// DevTools only knows '*' (any) and '?' (one char), so the result can match
// more URLs than the glob; callers must re-check with Match.
func (g *Glob) DevToolsPattern() string {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(g.pattern); i++ {
		c := g.pattern[i]
		switch {
		case c == '{':
			if depth == 0 {
				b.WriteByte('*')
			}
			depth++
		case c == '}' && depth > 0:
			depth--
		case depth > 0:
		case c == '*':
			if !strings.HasSuffix(b.String(), "*") {
				b.WriteByte('*')
			}
		case c == '?' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
