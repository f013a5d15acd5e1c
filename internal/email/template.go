package email

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"slices"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/ibuddy-app/ibuddy-service/internal/models"
)

// AllowedVariables are the mentee fields a body may reference as {{name}}.
var AllowedVariables = []string{"firstName", "lastName", "email", "gender", "degree"}

var (
	ErrInvalidVariables = errors.New("invalid variables in body")

	placeholder = regexp.MustCompile(`{{\s*([\w.]+)\s*}}`)
	ugcPolicy   = bluemonday.UGCPolicy()
	textPolicy  = bluemonday.StrictPolicy()
)

// Sanitize strips scripts, handlers and other unsafe markup from body.
func Sanitize(body string) string {
	return ugcPolicy.Sanitize(body)
}

// IsEmptyHTML reports whether body has no text once tags are removed.
func IsEmptyHTML(body string) bool {
	text := html.UnescapeString(textPolicy.Sanitize(body))
	return strings.TrimSpace(text) == ""
}

// ExtractVariables returns the distinct placeholder names in body, in order
// of first use.
func ExtractVariables(body string) []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(body, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}

// CheckVariables fails with ErrInvalidVariables naming every placeholder
// outside AllowedVariables.
func CheckVariables(names []string) error {
	var bad []string
	for _, n := range names {
		if !slices.Contains(AllowedVariables, n) {
			bad = append(bad, n)
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidVariables, strings.Join(bad, ", "))
	}
	return nil
}

// MenteeVariables maps the allowed variables to the mentee's values.
func MenteeVariables(m *models.Mentee) map[string]string {
	return map[string]string{
		"firstName": m.FirstName,
		"lastName":  m.LastName,
		"email":     m.Email,
		"gender":    string(m.Gender),
		"degree":    string(m.Degree),
	}
}

// Resolve substitutes each placeholder with its HTML escaped value. Unknown
// placeholders are left untouched.
func Resolve(body string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(body, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		v, ok := vars[name]
		if !ok {
			return match
		}
		return html.EscapeString(v)
	})
}
