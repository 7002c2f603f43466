package client

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
)

// Invocation is a resolved tool call.
type Invocation struct {
	Name string
	Args map[string]any
}

// Resolver turns a free-text query into a tool invocation chosen from the
// discovered tools.
type Resolver interface {
	Resolve(ctx context.Context, query string, tools []Descriptor) (Invocation, error)
}

type pattern struct {
	re   *regexp.Regexp
	tool string
	// swap binds the second number to the first parameter.
	swap bool
}

const number = `(-?\d+)`

var patterns = []pattern{
	{re: regexp.MustCompile(`(?i)\bsubtract\s+` + number + `\s+from\s+` + number), tool: "sub", swap: true},
	{re: regexp.MustCompile(`(?i)\b(?:subtract|sub)\s+` + number + `\s+(?:and|minus)\s+` + number), tool: "sub"},
	{re: regexp.MustCompile(`(?i)\b(?:multiply|times)\s+` + number + `\s+(?:by|and|with|times)\s+` + number), tool: "multiply"},
	{re: regexp.MustCompile(`(?i)\b(?:add|sum)\s+` + number + `\s+(?:and|to|plus|with)\s+` + number), tool: "add"},
	{re: regexp.MustCompile(number + `\s*(?:\*|x|×|times)\s*` + number), tool: "multiply"},
	{re: regexp.MustCompile(number + `\s*(?:\+|plus)\s*` + number), tool: "add"},
	{re: regexp.MustCompile(number + `\s*(?:-|minus)\s*` + number), tool: "sub"},
}

// PatternResolver understands simple arithmetic phrasing such as
// "add 3 and 5", "multiply 6 by 9", "subtract 4 from 10" or "7 * 8".
type PatternResolver struct{}

// Resolve matches query against the known phrasings. The chosen tool must be
// among tools and take two parameters.
func (PatternResolver) Resolve(_ context.Context, query string, tools []Descriptor) (Invocation, error) {
	for _, p := range patterns {
		match := p.re.FindStringSubmatch(query)
		if match == nil {
			continue
		}
		idx := slices.IndexFunc(tools, func(d Descriptor) bool { return d.Name == p.tool })
		if idx < 0 {
			return Invocation{}, fmt.Errorf("query needs tool %q, which the server does not offer", p.tool)
		}
		params := tools[idx].Parameters
		if len(params) != 2 {
			params = []string{"a", "b"}
		}
		first, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return Invocation{}, fmt.Errorf("parse %q: %w", match[1], err)
		}
		second, err := strconv.ParseInt(match[2], 10, 64)
		if err != nil {
			return Invocation{}, fmt.Errorf("parse %q: %w", match[2], err)
		}
		if p.swap {
			first, second = second, first
		}
		return Invocation{
			Name: p.tool,
			Args: map[string]any{params[0]: first, params[1]: second},
		}, nil
	}
	return Invocation{}, fmt.Errorf("no tool matches query %q", query)
}
