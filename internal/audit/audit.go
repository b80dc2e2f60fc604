// Package audit runs static accessibility checks over a DOM snapshot.
package audit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// Severity of a finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one rule violation
type Finding struct {
	Rule     string   `json:"rule" yaml:"rule"`
	Severity Severity `json:"severity" yaml:"severity"`
	Element  string   `json:"element" yaml:"element"`
	Message  string   `json:"message" yaml:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s (%s)", f.Severity, f.Rule, f.Message, f.Element)
}

// Rule inspects a document and reports violations
type Rule struct {
	ID          string
	Description string
	Check       func(doc *goquery.Document) []Finding
}

// DefaultRules returns every built-in rule
func DefaultRules() []Rule {
	return []Rule{
		{ID: "img-alt", Description: "images have an alt attribute", Check: checkImageAlt},
		{ID: "link-name", Description: "links have an accessible name", Check: checkNamed("a[href]", "link-name", "link")},
		{ID: "button-name", Description: "buttons have an accessible name", Check: checkNamed("button, [role=button]", "button-name", "button")},
		{ID: "dialog-modal", Description: "dialogs declare aria-modal and a name", Check: checkDialogs},
		{ID: "nav-current", Description: "a navigation marks at most one current page", Check: checkNavCurrent},
		{ID: "control-label", Description: "form controls have a label", Check: checkControlLabels},
	}
}

// Auditor applies a rule set
type Auditor struct {
	rules []Rule
}

// New creates an auditor with the given rules, or all default rules when ids is empty
func New(ids ...string) (*Auditor, error) {
	all := DefaultRules()
	if len(ids) == 0 {
		return &Auditor{rules: all}, nil
	}

	byID := make(map[string]Rule, len(all))
	for _, r := range all {
		byID[r.ID] = r
	}
	var rules []Rule
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown audit rule %q", id)
		}
		rules = append(rules, r)
	}
	return &Auditor{rules: rules}, nil
}

// Run parses html and returns the findings of every rule, ordered by rule
func (a *Auditor) Run(html string) ([]Finding, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}

	var findings []Finding
	for _, r := range a.rules {
		findings = append(findings, r.Check(doc)...)
	}
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].Rule < findings[j].Rule })
	return findings, nil
}

// hidden reports elements that assistive technology would skip
func hidden(s *goquery.Selection) bool {
	if s.Closest("[hidden], [aria-hidden=true], template").Length() > 0 {
		return true
	}
	style, _ := s.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(style, "display:none")
}

// describe renders a short element reference like button#close.primary
func describe(s *goquery.Selection) string {
	node := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok && id != "" {
		node += "#" + id
	}
	if class, ok := s.Attr("class"); ok {
		for _, c := range strings.Fields(class) {
			node += "." + c
		}
	}
	return node
}

// clean composes s to NFC and collapses whitespace
func clean(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}

func text(s *goquery.Selection) string {
	return clean(s.Text())
}

// accessibleName approximates the name a screen reader announces
func accessibleName(doc *goquery.Document, s *goquery.Selection) string {
	if ids, ok := s.Attr("aria-labelledby"); ok {
		var parts []string
		for _, id := range strings.Fields(ids) {
			if t := text(doc.Find("#" + id)); t != "" {
				parts = append(parts, t)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	if label, ok := s.Attr("aria-label"); ok && clean(label) != "" {
		return clean(label)
	}
	if t := text(s); t != "" {
		return t
	}
	alt := ""
	s.Find("img[alt]").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		alt, _ = img.Attr("alt")
		return strings.TrimSpace(alt) == ""
	})
	if clean(alt) != "" {
		return clean(alt)
	}
	if title, ok := s.Attr("title"); ok {
		return clean(title)
	}
	return ""
}

func checkImageAlt(doc *goquery.Document) []Finding {
	var out []Finding
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if hidden(s) {
			return
		}
		if _, ok := s.Attr("alt"); !ok {
			out = append(out, Finding{
				Rule:     "img-alt",
				Severity: SeverityError,
				Element:  describe(s),
				Message:  "image has no alt attribute",
			})
		}
	})
	return out
}

func checkNamed(selector, rule, what string) func(*goquery.Document) []Finding {
	return func(doc *goquery.Document) []Finding {
		var out []Finding
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if hidden(s) || accessibleName(doc, s) != "" {
				return
			}
			out = append(out, Finding{
				Rule:     rule,
				Severity: SeverityError,
				Element:  describe(s),
				Message:  what + " has no accessible name",
			})
		})
		return out
	}
}

func checkDialogs(doc *goquery.Document) []Finding {
	var out []Finding
	doc.Find("[role=dialog], [role=alertdialog], dialog").Each(func(_ int, s *goquery.Selection) {
		if hidden(s) {
			return
		}
		if v, _ := s.Attr("aria-modal"); v != "true" {
			out = append(out, Finding{
				Rule:     "dialog-modal",
				Severity: SeverityWarning,
				Element:  describe(s),
				Message:  `dialog does not declare aria-modal="true"`,
			})
		}
		_, labelled := s.Attr("aria-labelledby")
		_, labeled := s.Attr("aria-label")
		if !labelled && !labeled {
			out = append(out, Finding{
				Rule:     "dialog-modal",
				Severity: SeverityWarning,
				Element:  describe(s),
				Message:  "dialog has no aria-label or aria-labelledby",
			})
		}
	})
	return out
}

func checkNavCurrent(doc *goquery.Document) []Finding {
	var out []Finding
	doc.Find("nav, [role=navigation]").Each(func(_ int, nav *goquery.Selection) {
		if hidden(nav) {
			return
		}
		current := nav.Find(`[aria-current="page"]`)
		if current.Length() > 1 {
			out = append(out, Finding{
				Rule:     "nav-current",
				Severity: SeverityError,
				Element:  describe(nav),
				Message:  fmt.Sprintf("%d links are marked aria-current=\"page\"", current.Length()),
			})
		}
	})
	return out
}

func checkControlLabels(doc *goquery.Document) []Finding {
	var out []Finding
	doc.Find("input, textarea, select").Each(func(_ int, s *goquery.Selection) {
		if hidden(s) {
			return
		}
		switch t, _ := s.Attr("type"); strings.ToLower(t) {
		case "hidden", "submit", "button", "reset", "image":
			return
		}
		if _, ok := s.Attr("aria-label"); ok {
			return
		}
		if _, ok := s.Attr("aria-labelledby"); ok {
			return
		}
		if s.Closest("label").Length() > 0 {
			return
		}
		if id, ok := s.Attr("id"); ok && doc.Find(fmt.Sprintf(`label[for=%q]`, id)).Length() > 0 {
			return
		}
		out = append(out, Finding{
			Rule:     "control-label",
			Severity: SeverityError,
			Element:  describe(s),
			Message:  "form control has no label",
		})
	})
	return out
}
