package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"  DEBUG  ", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, c := range cases {
		if got := ParseLevel(c.in); got != c.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSetLogLevel_AppliesGlobally(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	SetLogLevel("error")
	if zerolog.GlobalLevel() != zerolog.ErrorLevel {
		t.Fatalf("global level = %v, want error", zerolog.GlobalLevel())
	}
	SetLogLevel("nonsense")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("global level = %v, want info fallback", zerolog.GlobalLevel())
	}
}

func TestNewLogger_CarriesServiceField(t *testing.T) {
	// The service field travels with every derived logger; a child context
	// built from the base logger must still chain.
	base := NewLogger("link-backend", false)
	child := base.With().Str("component", "test").Logger()
	child.Debug().Msg("smoke")

	pretty := NewLogger("link-backend", true)
	pretty.Debug().Msg("smoke")
}
