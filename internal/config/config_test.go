package config

import (
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_STR", "value")
	if got := envStr("X_STR", "def"); got != "value" {
		t.Fatalf("envStr set = %q", got)
	}
	if got := envStr("X_STR_MISSING", "def"); got != "def" {
		t.Fatalf("envStr missing = %q", got)
	}

	t.Setenv("X_BOOL", "true")
	if !envBool("X_BOOL", false) {
		t.Fatal("envBool true not parsed")
	}
	t.Setenv("X_BOOL", "nonsense")
	if envBool("X_BOOL", false) {
		t.Fatal("envBool should fall back on garbage")
	}

	t.Setenv("X_INT", "42")
	if got := envInt("X_INT", 1); got != 42 {
		t.Fatalf("envInt = %d", got)
	}
	t.Setenv("X_INT", "abc")
	if got := envInt("X_INT", 1); got != 1 {
		t.Fatalf("envInt fallback = %d", got)
	}

	t.Setenv("X_DUR", "250ms")
	if got := envDur("X_DUR", time.Second); got != 250*time.Millisecond {
		t.Fatalf("envDur = %v", got)
	}
	if got := envDurDefault("X_DUR_MISSING", 5*time.Second); got != 5*time.Second {
		t.Fatalf("envDurDefault = %v", got)
	}
}

func TestParseMethods(t *testing.T) {
	m := parseMethods("get, head")
	if !m["GET"] || !m["HEAD"] {
		t.Fatalf("methods not normalized: %#v", m)
	}
	if m["POST"] {
		t.Fatal("POST should not be present")
	}
}
