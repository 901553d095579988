package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
	}{
		{name: "JSON output mode", jsonOutput: true},
		{name: "Console output mode", jsonOutput: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = nil
			JSONOutput = false

			if err := Initialize(tt.jsonOutput, "debug"); err != nil {
				t.Fatalf("Initialize() error = %v", err)
			}
			if Logger == nil {
				t.Error("Initialize() did not set global Logger")
			}
			if JSONOutput != tt.jsonOutput {
				t.Errorf("JSONOutput = %v, want %v", JSONOutput, tt.jsonOutput)
			}

			Logger = zap.NewNop().Sugar()
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zap.DebugLevel,
		"DEBUG":   zap.DebugLevel,
		"info":    zap.InfoLevel,
		"warn":    zap.WarnLevel,
		"warning": zap.WarnLevel,
		" error ": zap.ErrorLevel,
		"":        zap.InfoLevel,
		"chatty":  zap.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEnvOverridesLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "error")
	if err := Initialize(true, "debug"); err != nil {
		t.Fatal(err)
	}
	defer func() { Logger = zap.NewNop().Sugar() }()

	if Logger.Desugar().Core().Enabled(zap.WarnLevel) {
		t.Error("warn should be disabled when the environment requests error level")
	}
}

func TestHelpersWriteStructuredFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Logger = zap.New(core).Sugar()
	defer func() { Logger = zap.NewNop().Sugar() }()

	Infow("converted", FieldCount, 3)
	Warnw("skipped", FieldFile, "a.json")
	Debugw("probe")
	Named("scanner").Errorw("failed", FieldError, "boom")

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	if entries[0].ContextMap()[FieldCount] != int64(3) {
		t.Errorf("count field = %v", entries[0].ContextMap()[FieldCount])
	}
	if entries[3].ContextMap()[FieldComponent] != "scanner" {
		t.Errorf("component field = %v", entries[3].ContextMap()[FieldComponent])
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	Logger = nil
	defer func() { Logger = zap.NewNop().Sugar() }()

	Infow("ignored")
	Warnw("ignored")
	Errorw("ignored")
	Debugw("ignored")
	Cleanup()
}
