package agent

import (
	"encoding/json"
	"strings"
)

// Result is the normalized agent answer. Exactly one of the three fields is
// meaningful: Structured when the model returned a JSON object, Error when
// the query failed, PlainText otherwise. Callers switch on the tag instead
// of sniffing the payload.
type Result struct {
	// PlainText is the model's prose answer.
	PlainText string `json:"plain_text,omitempty"`

	// Structured is the parsed JSON object the model returned, when it
	// chose to answer in structured form.
	Structured map[string]interface{} `json:"structured,omitempty"`

	// Error is the failure description when the query could not complete.
	Error string `json:"error,omitempty"`
}

// IsError reports whether the result carries a failure.
func (r Result) IsError() bool { return r.Error != "" }

// Text returns the best human-readable rendering of the result.
func (r Result) Text() string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Structured != nil:
		out, err := json.Marshal(r.Structured)
		if err != nil {
			return r.PlainText
		}
		return string(out)
	default:
		return r.PlainText
	}
}

// normalize classifies raw model output into a tagged Result. Output that
// parses as a JSON object becomes Structured; anything else, including JSON
// scalars and arrays, stays PlainText. Empty output is an error — the
// caller should never have to guess what silence means.
func normalize(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Result{Error: "agent returned an empty response"}
	}

	if strings.HasPrefix(trimmed, "{") {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return Result{Structured: obj}
		}
	}

	return Result{PlainText: trimmed}
}

// errorResult wraps a failure into a Result.
func errorResult(err error) Result {
	return Result{Error: err.Error()}
}
