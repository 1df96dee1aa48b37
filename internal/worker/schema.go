package worker

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindInt
	kindAny // checked later by Normalize
)

func (k fieldKind) String() string {
	switch k {
	case kindString:
		return "string"
	case kindNumber:
		return "number"
	case kindInt:
		return "integer"
	default:
		return "any"
	}
}

type field struct {
	kind     fieldKind
	required bool
	def      any
}

// inputSchema lists every accepted job option with its default.
var inputSchema = map[string]field{
	"prompt":                   {kind: kindString, required: true},
	"temperature":              {kind: kindNumber, def: 0.8},
	"top_p":                    {kind: kindNumber, def: 0.8},
	"top_k":                    {kind: kindInt, def: 50},
	"min_p":                    {kind: kindNumber, def: 0.0},
	"tfs":                      {kind: kindNumber, def: 0.0},
	"typical":                  {kind: kindNumber, def: 0.0},
	"token_repetition_penalty": {kind: kindNumber, def: 1.15},
	"token_repetition_range":   {kind: kindInt, def: -1},
	"token_repetition_decay":   {kind: kindInt, def: 0},
	"max_new_tokens":           {kind: kindInt, def: 512},
	"mirostat":                 {kind: kindInt, def: 0},
	"mirostat_tau":             {kind: kindNumber, def: 1.5},
	"mirostat_eta":             {kind: kindNumber, def: 0.1},
	"stop":                     {kind: kindAny},
}

// Validate checks in against the input schema and returns a copy with
// defaults filled in. All problems are collected into one ValidationError.
func Validate(in map[string]any) (map[string]any, error) {
	var problems []string
	out := make(map[string]any, len(inputSchema))

	unknown := make([]string, 0)
	for k := range in {
		if _, ok := inputSchema[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		problems = append(problems, fmt.Sprintf("Unexpected input. %s is not a valid input option.", k))
	}

	names := make([]string, 0, len(inputSchema))
	for k := range inputSchema {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		f := inputSchema[name]
		v, ok := in[name]
		if !ok || v == nil {
			if f.required {
				problems = append(problems, fmt.Sprintf("%s is a required input.", name))
				continue
			}
			if f.def != nil {
				out[name] = f.def
			}
			continue
		}
		if !f.accepts(v) {
			problems = append(problems, fmt.Sprintf("%s should be %s type, not %s.", name, f.kind, jsonTypeName(v)))
			continue
		}
		out[name] = v
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return out, nil
}

func (f field) accepts(v any) bool {
	switch f.kind {
	case kindString:
		_, ok := v.(string)
		return ok
	case kindNumber:
		_, ok := toFloat(v)
		return ok
	case kindInt:
		x, ok := toFloat(v)
		return ok && x == math.Trunc(x) && x >= math.MinInt32 && x <= math.MaxInt32
	default:
		return true
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x)
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// jsonTypeName names v the way a JSON caller would describe it.
func jsonTypeName(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		for _, e := range x {
			if _, ok := e.(string); !ok {
				return "list containing " + jsonTypeName(e)
			}
		}
		return "list"
	default:
		return fmt.Sprintf("%T", v)
	}
}
