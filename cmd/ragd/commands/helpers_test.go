package commands

import (
	"testing"
	"time"
)

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("RAGD_TEST_STR", "set")
	if got := getEnvOrDefault("RAGD_TEST_STR", "fallback"); got != "set" {
		t.Errorf("got %q, want set", got)
	}
	if got := getEnvOrDefault("RAGD_TEST_STR_UNSET", "fallback"); got != "fallback" {
		t.Errorf("got %q, want fallback", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("RAGD_TEST_INT", "42")
	t.Setenv("RAGD_TEST_INT_BAD", "not-a-number")

	tests := []struct {
		key      string
		fallback int
		want     int
	}{
		{"RAGD_TEST_INT", 7, 42},
		{"RAGD_TEST_INT_BAD", 7, 7},
		{"RAGD_TEST_INT_UNSET", 7, 7},
	}
	for _, tt := range tests {
		if got := getEnvInt(tt.key, tt.fallback); got != tt.want {
			t.Errorf("getEnvInt(%q, %d) = %d, want %d", tt.key, tt.fallback, got, tt.want)
		}
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("RAGD_TEST_BOOL", "false")
	if got := getEnvBool("RAGD_TEST_BOOL", true); got {
		t.Error("explicit false ignored")
	}
	if got := getEnvBool("RAGD_TEST_BOOL_UNSET", true); !got {
		t.Error("fallback true not returned for unset key")
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("RAGD_TEST_DUR", "45s")
	t.Setenv("RAGD_TEST_DUR_BAD", "soon")

	if got := getEnvDuration("RAGD_TEST_DUR", time.Minute); got != 45*time.Second {
		t.Errorf("got %v, want 45s", got)
	}
	if got := getEnvDuration("RAGD_TEST_DUR_BAD", time.Minute); got != time.Minute {
		t.Errorf("got %v, want fallback 1m", got)
	}
}
