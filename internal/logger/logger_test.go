package logger

import "testing"

func TestNewNopDoesNotPanicOnAnyLevel(t *testing.T) {
	l := NewNop()
	l.Debug("debug message", "k", "v")
	l.Info("info message")
	l.Warn("warn message", "k", 1)
	l.Error("error message", "err", "boom")
	l.Sync()
}

func TestWithReturnsIndependentLogger(t *testing.T) {
	l := NewNop()
	child := l.With("component", "test")
	child.Info("hello")
	// original logger must remain usable after deriving a child.
	l.Info("still usable")
}

func TestSyncOnNilLoggerDoesNotPanic(t *testing.T) {
	var l *Logger
	l.Sync()
}

func TestSanitizeRedactsKnownSensitiveKeys(t *testing.T) {
	kv := sanitize([]interface{}{"api_key", "sk-super-secret", "stage", "PLAN"})
	if kv[1] != "[REDACTED]" {
		t.Errorf("api_key value = %v, want [REDACTED]", kv[1])
	}
	if kv[3] != "PLAN" {
		t.Errorf("unrelated key value = %v, want unchanged", kv[3])
	}
}

func TestSanitizeHashesUserID(t *testing.T) {
	kv := sanitize([]interface{}{"user_id", "user-42"})
	got, ok := kv[1].(string)
	if !ok {
		t.Fatalf("expected string, got %T", kv[1])
	}
	if got == "user-42" {
		t.Error("user_id should have been hashed, not left as-is")
	}
	if len(got) < len("hash:") || got[:5] != "hash:" {
		t.Errorf("hashed value = %q, want hash:... prefix", got)
	}
}

func TestSanitizeHandlesOddLengthArgsGracefully(t *testing.T) {
	kv := sanitize([]interface{}{"trailing_key"})
	if len(kv) != 1 || kv[0] != "trailing_key" {
		t.Errorf("kv = %v, want unchanged single-element slice", kv)
	}
}

func TestNewBuildsDevelopmentLoggerByDefault(t *testing.T) {
	l, err := New("dev")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("sanity check")
	l.Sync()
}
