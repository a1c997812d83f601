package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferLoggerCaptures(t *testing.T) {
	l := NewBufferLogger()

	l.Debug("fetching %s", "i-0abc")
	l.Info("state is %s", "running")
	l.Warn("no address yet")
	l.Error("describe failed")

	assert.Len(t, l.Messages, 4)
	assert.Equal(t, "fetching i-0abc", l.Messages[0].Message)
	assert.True(t, l.HasLevel("warn"))
	assert.True(t, l.HasLevel("error"))
	assert.False(t, l.HasLevel("fatal"))

	l.Clear()
	assert.Empty(t, l.Messages)
}

func TestNewRespectsVerbose(t *testing.T) {
	var quiet, verbose bytes.Buffer

	New(&quiet, "test", false).Debug("hidden")
	New(&verbose, "test", true).Debug("visible")

	assert.NotContains(t, quiet.String(), "hidden")
	assert.Contains(t, verbose.String(), "visible")
}

func TestNoopDiscards(t *testing.T) {
	// Must not panic and must not write anywhere.
	l := Noop()
	l.Debug("a")
	l.Info("b")
	l.Warn("c")
	l.Error("d")
}

func TestSetDefault(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	buf := NewBufferLogger()
	SetDefault(buf)
	Default().Info("hello")

	assert.True(t, buf.HasLevel("info"))
}
