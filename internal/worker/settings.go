package worker

import (
	"llmworker/internal/engine"
)

// Settings is the normalized, immutable form of a job's input.
type Settings struct {
	Prompt string
	engine.Settings
}

// Normalize maps a schema-validated parameter bag onto Settings. Values other
// than stop are trusted to have passed Validate; stop must be a list of
// strings and anything else is a TypeMismatchError.
func Normalize(in map[string]any) (Settings, error) {
	stop, err := stopList(in["stop"])
	if err != nil {
		return Settings{}, err
	}
	s := Settings{
		Prompt: str(in["prompt"]),
		Settings: engine.Settings{
			Temperature:            num(in["temperature"]),
			TopP:                   num(in["top_p"]),
			TopK:                   integer(in["top_k"]),
			MinP:                   num(in["min_p"]),
			TFS:                    num(in["tfs"]),
			Typical:                num(in["typical"]),
			TokenRepetitionPenalty: num(in["token_repetition_penalty"]),
			TokenRepetitionRange:   integer(in["token_repetition_range"]),
			TokenRepetitionDecay:   integer(in["token_repetition_decay"]),
			MaxNewTokens:           integer(in["max_new_tokens"]),
			Mirostat:               integer(in["mirostat"]),
			MirostatTau:            num(in["mirostat_tau"]),
			MirostatEta:            num(in["mirostat_eta"]),
			Stop:                   stop,
		},
	}
	return s, nil
}

func stopList(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []string:
		return append([]string(nil), x...), nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, ok := e.(string)
			if !ok {
				return nil, TypeMismatchError{Field: "stop", Want: "list", Got: jsonTypeName(v)}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, TypeMismatchError{Field: "stop", Want: "list", Got: jsonTypeName(v)}
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) float64 {
	f, _ := toFloat(v)
	return f
}

func integer(v any) int {
	f, _ := toFloat(v)
	return int(f)
}
