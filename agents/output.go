package agents

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/adala/ai"
)

const maxUnwrapDepth = 8

// Output is what an agent run produced. It is one of Structured, RawText or
// a wrapper exposing Unwrap.
type Output interface {
	isOutput()
}

// Structured is output that is already a decoded JSON object.
type Structured struct {
	Value map[string]any
}

// RawText is unparsed model output.
type RawText struct {
	Text string
}

// TaskResult wraps the output of one agent task.
type TaskResult struct {
	Agent  string
	Output Output
}

func (Structured) isOutput() {}
func (RawText) isOutput()    {}
func (TaskResult) isOutput() {}

// Unwrap returns the wrapped output.
func (r TaskResult) Unwrap() Output {
	return r.Output
}

type unwrapper interface {
	Unwrap() Output
}

type parseStrategy func(Output) (map[string]any, bool)

// parseChain is tried in order; the first strategy to succeed wins.
var parseChain = []parseStrategy{
	parseStructured,
	parseDirectJSON,
	parseEmbeddedJSON,
}

// Parse reads agent output as a JSON object. Wrappers are unwrapped first,
// then the output is tried as a decoded value, as JSON text and finally as
// prose containing a JSON object. Parse never panics; it returns ErrParse
// when every strategy fails.
func Parse(out Output) (map[string]any, error) {
	for depth := 0; depth < maxUnwrapDepth; depth++ {
		w, ok := out.(unwrapper)
		if !ok {
			break
		}
		out = w.Unwrap()
	}

	for _, strategy := range parseChain {
		if v, ok := strategy(out); ok {
			return v, nil
		}
	}
	return nil, ErrParse
}

func parseStructured(out Output) (map[string]any, bool) {
	s, ok := out.(Structured)
	if !ok || s.Value == nil {
		return nil, false
	}
	return s.Value, true
}

func parseDirectJSON(out Output) (map[string]any, bool) {
	raw, ok := out.(RawText)
	if !ok {
		return nil, false
	}
	return decodeObject(ai.StripCodeFences(raw.Text))
}

func parseEmbeddedJSON(out Output) (map[string]any, bool) {
	raw, ok := out.(RawText)
	if !ok {
		return nil, false
	}
	candidate := ai.ExtractJSONObject(raw.Text)
	if candidate == "" {
		return nil, false
	}
	return decodeObject(candidate)
}

// decodeObject decodes s as a JSON object, retrying once with RepairJSON.
func decodeObject(s string) (map[string]any, bool) {
	var v map[string]any
	if err := json.Unmarshal([]byte(s), &v); err == nil && v != nil {
		return v, true
	}
	if err := json.Unmarshal([]byte(ai.RepairJSON(s)), &v); err == nil && v != nil {
		return v, true
	}
	return nil, false
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func floatField(m map[string]any, key string, fallback float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return fallback
}

func stringsField(m map[string]any, key string) []string {
	items, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case nil:
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}
