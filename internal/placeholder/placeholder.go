// Package placeholder rewrites {token} placeholders in element names into
// brand, user and caller-supplied values.
package placeholder

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/colors"
	"github.com/prettyclosedev-dev/pretty-smart-editor-api/internal/design"
)

// SmartPrefix marks tokens served by the live data source.
const SmartPrefix = "ai_"

var tokenPattern = regexp.MustCompile(`\{([^}]+)\}`)

// SmartSource resolves live data tokens such as "ai_interest_rate_30".
// A false second result means the key is unknown.
type SmartSource interface {
	Lookup(ctx context.Context, token string, brand *design.Brand) (string, bool, error)
}

// SmartSourceFunc adapts a function to SmartSource.
type SmartSourceFunc func(ctx context.Context, token string, brand *design.Brand) (string, bool, error)

func (f SmartSourceFunc) Lookup(ctx context.Context, token string, brand *design.Brand) (string, bool, error) {
	return f(ctx, token, brand)
}

type Input struct {
	Name  string
	User  *design.User
	Brand *design.Brand
	// Fields is the merged brand and caller mapping. Matching walks it in
	// order and the first key contained in a token wins.
	Fields design.Fields
}

type Output struct {
	Text string
	// Replaced is true when at least one token was substituted. Callers
	// only commit Text when it is set.
	Replaced bool
	// Errors holds live data failures; the affected tokens stay literal.
	Errors []error
}

type Resolver struct {
	smart SmartSource
}

// New returns a resolver. smart may be nil, in which case live data tokens
// stay literal.
func New(smart SmartSource) *Resolver {
	return &Resolver{smart: smart}
}

// Resolve substitutes every placeholder of in.Name independently. For each
// token the first applicable rule wins:
//
//  1. tokens containing "ai_" go to the live data source
//  2. tokens containing "name" take the user's name when there is one
//  3. tokens containing any key of in.Fields take that key's value
//  4. anything else is left untouched, braces included
func (r *Resolver) Resolve(ctx context.Context, in Input) Output {
	var out Output
	out.Text = tokenPattern.ReplaceAllStringFunc(in.Name, func(match string) string {
		token := match[1 : len(match)-1]

		if strings.Contains(token, SmartPrefix) {
			if r.smart == nil {
				return match
			}
			value, ok, err := r.smart.Lookup(ctx, token, in.Brand)
			if err != nil {
				out.Errors = append(out.Errors, fmt.Errorf("placeholder %s: %w", match, err))
				return match
			}
			if !ok {
				return match
			}
			out.Replaced = true
			return value
		}

		if strings.Contains(token, "name") && in.User != nil && in.User.Name != "" {
			out.Replaced = true
			return in.User.Name
		}

		for _, field := range in.Fields {
			if field.Key != "" && strings.Contains(token, field.Key) {
				out.Replaced = true
				return field.Value
			}
		}
		return match
	})
	return out
}

// Tokens lists the placeholder tokens of name, without braces.
func Tokens(name string) []string {
	var out []string
	for _, m := range tokenPattern.FindAllStringSubmatch(name, -1) {
		out = append(out, m[1])
	}
	return out
}

// StripRoleSuffix removes a trailing "{role}" color instruction such as
// "{primary}" or "{secondary_on_white}" from name.
func StripRoleSuffix(name string) (string, colors.Role, bool) {
	trimmed := strings.TrimRight(name, " ")
	if !strings.HasSuffix(trimmed, "}") {
		return name, "", false
	}
	open := strings.LastIndex(trimmed, "{")
	if open < 0 {
		return name, "", false
	}
	role, ok := colors.ParseRole(trimmed[open+1 : len(trimmed)-1])
	if !ok {
		return name, "", false
	}
	return strings.TrimRight(trimmed[:open], " "), role, true
}
