package shared

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/log"
)

func TestShortID(t *testing.T) {
	if got := ShortID("abcdefghijkl", 8); got != "abcdefgh" {
		t.Errorf("expected abcdefgh, got %s", got)
	}
	if got := ShortID("abc", 8); got != "abc" {
		t.Errorf("expected abc, got %s", got)
	}
}

func TestLogger(t *testing.T) {
	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "service", "spotify")
		logger.Info("hello")

		if !bytes.Contains(buf.Bytes(), []byte("service=spotify")) {
			t.Errorf("expected service field in output, got %q", buf.String())
		}
	})

	t.Run("WithLogger tolerates nil", func(t *testing.T) {
		if logger := WithLogger(nil, "k", "v"); logger == nil {
			t.Fatal("expected a logger")
		}
	})

	t.Run("SetLogLevel", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.ErrorLevel)
		logger.Info("hidden")

		if buf.Len() != 0 {
			t.Errorf("expected info to be filtered, got %q", buf.String())
		}
	})
}
