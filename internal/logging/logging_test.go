package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		want    zapcore.Level
		wantErr bool
	}{
		{name: "defaults", level: "", format: "", want: zapcore.InfoLevel},
		{name: "debug console", level: "debug", format: "console", want: zapcore.DebugLevel},
		{name: "warn json", level: "WARN", format: "json", want: zapcore.WarnLevel},
		{name: "bad level", level: "loud", format: "console", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.level, tt.format)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("New() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if !l.Core().Enabled(tt.want) {
				t.Errorf("level %v not enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
				t.Errorf("level %v unexpectedly enabled", tt.want-1)
			}
		})
	}
}

func TestSetAndL(t *testing.T) {
	orig := L()
	t.Cleanup(func() { Set(orig) })

	l := zap.NewExample()
	Set(l)
	if L() != l {
		t.Fatalf("L() did not return the logger passed to Set")
	}

	Set(nil)
	if L() == nil {
		t.Fatalf("L() = nil after Set(nil), want no-op logger")
	}
}
