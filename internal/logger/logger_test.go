package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	cases := []struct {
		opts    Options
		level   zapcore.Level
		wantErr string
	}{
		{opts: Options{}, level: zapcore.InfoLevel},
		{opts: Options{Mode: "production", Level: "WARN"}, level: zapcore.WarnLevel},
		{opts: Options{Mode: "dev", Level: "debug"}, level: zapcore.DebugLevel},
		{opts: Options{Mode: "loud"}, wantErr: "unknown mode"},
		{opts: Options{Level: "chatty"}, wantErr: "level"},
	}
	for _, tc := range cases {
		log, err := New(tc.opts)
		if tc.wantErr != "" {
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("%+v: expected error containing %q, got %v", tc.opts, tc.wantErr, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%+v: %v", tc.opts, err)
		}
		if !log.Core().Enabled(tc.level) || (tc.level > zapcore.DebugLevel && log.Core().Enabled(tc.level-1)) {
			t.Fatalf("%+v: unexpected level", tc.opts)
		}
	}
}

func TestSession(t *testing.T) {
	field := Session("session-123")
	if field.Key != "session" || len(field.String) != 12 || strings.Contains(field.String, "session") {
		t.Fatalf("unexpected field %+v", field)
	}
	if Session("session-123").String != field.String {
		t.Fatalf("expected stable digest")
	}
}
