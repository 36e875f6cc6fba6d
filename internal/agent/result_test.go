package agent

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want string // which tag should be set: plain, structured, error
	}{
		{"prose", "The director is Dr. X.", "plain"},
		{"json object", `{"director": "Dr. X", "since": 2019}`, "structured"},
		{"json with whitespace", "  {\"a\": 1}\n", "structured"},
		{"json array stays plain", `[1, 2, 3]`, "plain"},
		{"json scalar stays plain", `"hello"`, "plain"},
		{"broken json stays plain", `{"unterminated": `, "plain"},
		{"empty", "", "error"},
		{"whitespace only", "  \n\t", "error"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := normalize(tt.raw)

			got := "plain"
			if r.Structured != nil {
				got = "structured"
			}
			if r.Error != "" {
				got = "error"
			}
			if got != tt.want {
				t.Errorf("normalize(%q) tagged as %s, want %s (%+v)", tt.raw, got, tt.want, r)
			}
		})
	}
}

func TestResultText(t *testing.T) {
	t.Parallel()

	if got := (Result{PlainText: "answer"}).Text(); got != "answer" {
		t.Errorf("plain Text() = %q", got)
	}

	r := normalize(`{"key": "value"}`)
	if got := r.Text(); got != `{"key":"value"}` {
		t.Errorf("structured Text() = %q", got)
	}

	if got := errorResult(errors.New("backend down")).Text(); got != "backend down" {
		t.Errorf("error Text() = %q", got)
	}
}

func TestIsError(t *testing.T) {
	t.Parallel()

	if (Result{PlainText: "ok"}).IsError() {
		t.Error("plain result reported as error")
	}
	if !(Result{Error: "boom"}).IsError() {
		t.Error("error result not reported as error")
	}
}
