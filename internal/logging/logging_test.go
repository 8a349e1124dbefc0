package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		level, format string
		wantErr       bool
		enabled       zapcore.Level
		disabled      zapcore.Level
	}{
		{"info", "json", false, zapcore.InfoLevel, zapcore.DebugLevel},
		{"debug", "console", false, zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"WARN", "", false, zapcore.WarnLevel, zapcore.InfoLevel},
		{"loud", "json", true, 0, 0},
		{"info", "xml", true, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.format, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatal("want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			core := logger.Core()
			if !core.Enabled(tt.enabled) {
				t.Errorf("level %v disabled", tt.enabled)
			}
			if core.Enabled(tt.disabled) {
				t.Errorf("level %v enabled", tt.disabled)
			}
		})
	}
}
