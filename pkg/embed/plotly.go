package embed

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xhad/sitecheck/internal/models"
)

const defaultTraceType = "scatter"

var (
	rePlotCall    = regexp.MustCompile(`\bPlotly\.(?:newPlot|plot|react)\s*\(`)
	reGetElement  = regexp.MustCompile(`^document\.getElementById\(\s*(['"])([^'"]+)['"]\s*\)$`)
	reQuerySelect = regexp.MustCompile(`^document\.querySelector\(\s*(['"])#([^'"]+)['"]\s*\)$`)
)

// reJSNumber matches decimal literals plus the NaN and Infinity globals.
var reJSNumber = regexp.MustCompile(`^(?:[+-]?(?:(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?|Infinity)|NaN)$`)

// findPlotCalls returns the offset of every plotting call in script,
// skipping commented out calls.
func findPlotCalls(script string) []int {
	code := stripComments(script)
	var calls []int
	for _, m := range rePlotCall.FindAllStringIndex(code, -1) {
		calls = append(calls, m[0])
	}
	return calls
}

// parsePlotCall reads the target and traces of the call at offset in script.
// A non-empty reason means the call does not describe a drawable chart.
func parsePlotCall(script string, offset int) (models.ScriptedChart, string) {
	var chart models.ScriptedChart
	script = stripComments(script)

	open := strings.IndexByte(script[offset:], '(')
	if open < 0 {
		return chart, "unterminated plot call"
	}
	open += offset
	end, ok := matchBalanced(script, open)
	if !ok {
		return chart, "unterminated plot call"
	}
	args := splitTopLevel(script[open+1 : end])
	if len(args) == 0 {
		return chart, "plot call has no target"
	}

	target, ok := resolveTarget(script, args[0])
	if !ok {
		return chart, fmt.Sprintf("cannot resolve chart target %s", args[0])
	}
	chart.TargetID = target

	if len(args) < 2 {
		return chart, "plot call has no data"
	}
	data, ok := resolveValue(script, args[1])
	if !ok {
		return chart, fmt.Sprintf("cannot resolve chart data %s", args[1])
	}
	elems, ok := literalBody(data, '[', ']')
	if !ok {
		return chart, "chart data is not an array of traces"
	}

	traces := splitTopLevel(elems)
	if len(traces) == 0 {
		return chart, "chart data has no traces"
	}
	for i, elem := range traces {
		trace, reason := parseTrace(script, elem)
		if reason != "" {
			return chart, fmt.Sprintf("trace %d: %s", i, reason)
		}
		chart.Traces = append(chart.Traces, trace)
	}
	return chart, ""
}

func resolveTarget(script, arg string) (string, bool) {
	for depth := 0; depth < 4; depth++ {
		arg = strings.TrimSpace(arg)
		if id, ok := unquote(arg); ok {
			return strings.TrimPrefix(id, "#"), id != ""
		}
		if m := reGetElement.FindStringSubmatch(arg); m != nil {
			return m[2], true
		}
		if m := reQuerySelect.FindStringSubmatch(arg); m != nil {
			return m[2], true
		}
		if !isIdent(arg) {
			return "", false
		}
		next, ok := resolveIdent(script, arg)
		if !ok {
			return "", false
		}
		arg = next
	}
	return "", false
}

// resolveValue follows identifiers until it reaches a literal.
func resolveValue(script, expr string) (string, bool) {
	for depth := 0; depth < 4; depth++ {
		expr = strings.TrimSpace(expr)
		if !isIdent(expr) {
			return expr, true
		}
		next, ok := resolveIdent(script, expr)
		if !ok {
			return "", false
		}
		expr = next
	}
	return "", false
}

func parseTrace(script, elem string) (models.Trace, string) {
	trace := models.Trace{Type: defaultTraceType}

	lit, ok := resolveValue(script, elem)
	if !ok {
		return trace, fmt.Sprintf("cannot resolve %s", elem)
	}
	fields, ok := objectFields(lit)
	if !ok {
		return trace, "trace is not an object"
	}

	if raw, ok := fields["type"]; ok {
		typ, ok := unquote(raw)
		if !ok || typ == "" {
			return trace, fmt.Sprintf("type %s is not a string", raw)
		}
		trace.Type = typ
	}

	xs, reason := numericSeries(script, fields, "x")
	if reason != "" {
		return trace, reason
	}
	ys, reason := numericSeries(script, fields, "y")
	if reason != "" {
		return trace, reason
	}
	if len(xs) != len(ys) {
		return trace, fmt.Sprintf("x has %d values but y has %d", len(xs), len(ys))
	}

	trace.Points = make([]models.Point, len(xs))
	for i := range xs {
		trace.Points[i] = models.Point{X: xs[i], Y: ys[i]}
	}
	return trace, ""
}

func numericSeries(script string, fields map[string]string, key string) ([]float64, string) {
	raw, ok := fields[key]
	if !ok {
		return nil, fmt.Sprintf("missing %s", key)
	}
	lit, ok := resolveValue(script, raw)
	if !ok {
		return nil, fmt.Sprintf("cannot resolve %s", raw)
	}
	body, ok := literalBody(lit, '[', ']')
	if !ok {
		return nil, fmt.Sprintf("%s is not an array", key)
	}

	elems := splitTopLevel(body)
	values := make([]float64, 0, len(elems))
	for i, e := range elems {
		if !reJSNumber.MatchString(e) {
			return nil, fmt.Sprintf("%s[%d] is not numeric: %s", key, i, e)
		}
		v, err := strconv.ParseFloat(e, 64)
		if err != nil {
			return nil, fmt.Sprintf("%s[%d] is not numeric: %s", key, i, e)
		}
		values = append(values, v)
	}
	return values, ""
}
