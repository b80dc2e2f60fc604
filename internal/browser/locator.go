// internal/browser/locator.go
package browser

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
)

//go:embed locator.js
var locatorScript string

// refAttribute is set on resolved elements so chromedp selector actions can
// target exactly the node a Locator matched.
const refAttribute = "data-uiverify-ref"

// Locator identifies an element by CSS selector, visible text, ARIA role and
// accessible name, or form label. Exactly one of CSS, Text, Role and Label is
// set. Matching is a case-insensitive substring unless Exact is true.
type Locator struct {
	CSS    string   `yaml:"css,omitempty" json:"css,omitempty"`
	Text   string   `yaml:"text,omitempty" json:"text,omitempty"`
	Role   string   `yaml:"role,omitempty" json:"role,omitempty"`
	Name   string   `yaml:"name,omitempty" json:"name,omitempty"`
	Label  string   `yaml:"label,omitempty" json:"label,omitempty"`
	Exact  bool     `yaml:"exact,omitempty" json:"exact,omitempty"`
	Nth    *int     `yaml:"nth,omitempty" json:"nth,omitempty"`
	Within *Locator `yaml:"within,omitempty" json:"within,omitempty"`

	// HasText keeps only matches whose text contains it, case-insensitively
	HasText string `yaml:"has_text,omitempty" json:"has_text,omitempty"`
}

// CSS locates elements matching a CSS selector
func CSS(selector string) *Locator {
	return &Locator{CSS: selector}
}

// Text locates the innermost elements whose text contains s
func Text(s string) *Locator {
	return &Locator{Text: s}
}

// Role locates elements by ARIA role and, when name is non-empty, accessible name
func Role(role, name string) *Locator {
	return &Locator{Role: role, Name: name}
}

// Label locates form controls by their label text
func Label(s string) *Locator {
	return &Locator{Label: s}
}

// Exactly returns a copy that requires whole-string, case-sensitive matches
func (l *Locator) Exactly() *Locator {
	c := *l
	c.Exact = true
	return &c
}

// At returns a copy narrowed to the i-th match; negative i counts from the end
func (l *Locator) At(i int) *Locator {
	c := *l
	c.Nth = &i
	return &c
}

// Containing returns a copy narrowed to matches whose text contains s
func (l *Locator) Containing(s string) *Locator {
	c := *l
	c.HasText = s
	return &c
}

// In returns a copy that only searches inside elements matched by parent
func (l *Locator) In(parent *Locator) *Locator {
	c := *l
	c.Within = parent
	return &c
}

// Validate checks that exactly one strategy is set
func (l *Locator) Validate() error {
	if l == nil {
		return fmt.Errorf("locator is required")
	}

	set := 0
	for _, v := range []string{l.CSS, l.Text, l.Role, l.Label} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return fmt.Errorf("locator needs one of css, text, role or label")
	case set > 1:
		return fmt.Errorf("locator %s sets more than one of css, text, role and label", l)
	case l.Name != "" && l.Role == "":
		return fmt.Errorf("locator name %q requires a role", l.Name)
	}

	if l.Within != nil {
		if err := l.Within.Validate(); err != nil {
			return fmt.Errorf("within: %w", err)
		}
	}
	return nil
}

// String describes the locator for logs and error messages
func (l *Locator) String() string {
	if l == nil {
		return "<nil>"
	}

	var b strings.Builder
	if l.Within != nil {
		b.WriteString(l.Within.String())
		b.WriteString(" >> ")
	}

	switch {
	case l.CSS != "":
		b.WriteString("css=" + l.CSS)
	case l.Text != "":
		fmt.Fprintf(&b, "text=%q", l.Text)
	case l.Role != "":
		b.WriteString("role=" + l.Role)
		if l.Name != "" {
			fmt.Fprintf(&b, "[name=%q]", l.Name)
		}
	case l.Label != "":
		fmt.Fprintf(&b, "label=%q", l.Label)
	}

	if l.Exact && l.CSS == "" {
		b.WriteString(" exact")
	}
	if l.HasText != "" {
		fmt.Fprintf(&b, " >> has-text=%q", l.HasText)
	}
	if l.Nth != nil {
		fmt.Fprintf(&b, " >> nth=%d", *l.Nth)
	}
	return b.String()
}

// refSelector is the CSS selector of an element tagged by locator.js
func refSelector(ref string) string {
	return fmt.Sprintf(`[%s=%q]`, refAttribute, ref)
}

// locatorExpression builds the JavaScript that runs op against the element l resolves to
func locatorExpression(l *Locator, op string, arg interface{}) (string, error) {
	spec, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("failed to encode locator: %w", err)
	}
	encodedArg, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s argument: %w", op, err)
	}
	opName, _ := json.Marshal(op)
	refName, _ := json.Marshal(refAttribute)

	return fmt.Sprintf("(%s)(%s, %s, %s, %s)", strings.TrimSpace(locatorScript), spec, opName, encodedArg, refName), nil
}
