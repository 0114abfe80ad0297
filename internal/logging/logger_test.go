package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLoggerLevels(t *testing.T) {
	testCases := []struct {
		level    string
		expected zapcore.Level
	}{
		{level: "", expected: zapcore.InfoLevel},
		{level: "debug", expected: zapcore.DebugLevel},
		{level: "WARNING", expected: zapcore.WarnLevel},
		{level: " error ", expected: zapcore.ErrorLevel},
	}

	for _, testCase := range testCases {
		logger, err := NewLogger(testCase.level, "json")
		if err != nil {
			t.Fatalf("level %q: unexpected error %v", testCase.level, err)
		}
		if !logger.Core().Enabled(testCase.expected) {
			t.Fatalf("level %q: expected %s to be enabled", testCase.level, testCase.expected)
		}
		if testCase.expected > zapcore.DebugLevel && logger.Core().Enabled(testCase.expected-1) {
			t.Fatalf("level %q: expected %s to be disabled", testCase.level, testCase.expected-1)
		}
	}
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	if _, err := NewLogger("verbose", "json"); err == nil {
		t.Fatalf("expected unknown level to be rejected")
	}
}

func TestNewLoggerConsoleFormat(t *testing.T) {
	logger, err := NewLogger("info", "console")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected logger")
	}
}
