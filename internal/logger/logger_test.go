package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   Debug,
		"DEBUG":   Debug,
		" warn ":  Warn,
		"warning": Warn,
		"error":   Error,
		"info":    Info,
		"":        Info,
		"verbose": Info,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestZapLevel(t *testing.T) {
	cases := map[LogLevel]zapcore.Level{
		Debug: zapcore.DebugLevel,
		Info:  zapcore.InfoLevel,
		Warn:  zapcore.WarnLevel,
		Error: zapcore.ErrorLevel,
	}
	for in, want := range cases {
		if got := in.zapLevel(); got != want {
			t.Errorf("%d.zapLevel() = %s, want %s", in, got, want)
		}
	}
}

func TestNewZapLogger(t *testing.T) {
	for _, encoding := range []string{"json", "console", ""} {
		l, sync, err := NewZapLogger(Options{Level: Error, Encoding: encoding})
		if err != nil {
			t.Fatalf("encoding %q: %v", encoding, err)
		}
		l.With("job", "update_fx").Debugf("filtered out")
		sync()
	}
}

func TestNopLoggerWith(t *testing.T) {
	l := NewNop().With("job", "update_prices")
	l.Infof("ignored %d", 1)
	l.Warnf("ignored")
}
