// Package query evaluates listing queries against an in-memory record
// collection: a small filter language, sort keys and pagination.
package query

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"

	"feed-go/internal/model"
)

// A predicate is `<field> ~ "<needle>"` or `<field> ~ '<needle>'`.
// Quoted strings outside a predicate are matched too, so that every quoted
// span is consumed exactly once. Anything else in the expression is ignored.
var (
	token = regexp.MustCompile(
		`(author\.username|username|email|text)\s*~\s*(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)')` +
			`|"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'`)
	escape = regexp.MustCompile(`\\(.)`)
)

// Filter is a parsed filter expression. All predicates must hold (implicit AND).
// The zero Filter matches every record.
type Filter struct {
	Username string   // needle for author.username; empty means no constraint
	Text     []string // every needle must occur in the record text
}

// ParseFilter extracts the predicates from expr. Parsing is permissive:
// unrecognised input contributes no predicate instead of failing.
// Only the first author.username predicate counts.
func ParseFilter(expr string) Filter {
	var f Filter
	haveUsername := false
	scan(expr, func(field, value string) {
		switch field {
		case "author.username":
			if !haveUsername {
				f.Username, haveUsername = value, true
			}
		case "text":
			f.Text = append(f.Text, value)
		}
	})
	return f
}

// scan calls fn for every `field ~ "value"` predicate in expr, in order.
func scan(expr string, fn func(field, value string)) {
	for _, m := range token.FindAllStringSubmatchIndex(expr, -1) {
		if m[2] < 0 || partOfName(expr, m[0]) {
			continue
		}
		fn(expr[m[2]:m[3]], needle(expr, m))
	}
}

// partOfName reports whether the field starting at i continues a longer
// name such as author.text or subtext.
func partOfName(expr string, i int) bool {
	if i == 0 {
		return false
	}
	c := expr[i-1]
	return c == '.' || c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}

func needle(expr string, m []int) string {
	var s string
	switch {
	case m[4] >= 0:
		s = expr[m[4]:m[5]]
	case m[6] >= 0:
		s = expr[m[6]:m[7]]
	}
	return escape.ReplaceAllString(s, "$1")
}

// IsEmpty reports whether f has no predicates.
func (f Filter) IsEmpty() bool {
	return f.Username == "" && len(f.Text) == 0
}

// Match reports whether rec satisfies every predicate, comparing
// case-insensitively.
func (f Filter) Match(rec *model.Record) bool {
	fold := cases.Fold()
	if f.Username != "" && !containsFold(fold, rec.Author.Username, f.Username) {
		return false
	}
	for _, n := range f.Text {
		if !containsFold(fold, rec.Text, n) {
			return false
		}
	}
	return true
}

func containsFold(fold cases.Caser, s, sub string) bool {
	return strings.Contains(fold.String(s), fold.String(sub))
}

// UserFilter is a parsed filter over identities, with `username ~ "..."` and
// `email ~ "..."` predicates. The zero UserFilter matches everyone.
type UserFilter struct {
	Username string
	Email    string
}

// ParseUserFilter extracts the first username and email predicates from
// expr. It is as permissive as ParseFilter.
func ParseUserFilter(expr string) UserFilter {
	var f UserFilter
	var haveUsername, haveEmail bool
	scan(expr, func(field, value string) {
		switch {
		case field == "username" && !haveUsername:
			f.Username, haveUsername = value, true
		case field == "email" && !haveEmail:
			f.Email, haveEmail = value, true
		}
	})
	return f
}

// Match reports whether id satisfies every predicate, comparing
// case-insensitively.
func (f UserFilter) Match(id *model.Identity) bool {
	fold := cases.Fold()
	if f.Username != "" && !containsFold(fold, id.Username, f.Username) {
		return false
	}
	return f.Email == "" || containsFold(fold, id.Email, f.Email)
}
