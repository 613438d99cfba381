package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewStructured(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		t.Run(format, func(t *testing.T) {
			l, err := NewStructured("debug", format)
			require.NoError(t, err)
			l.Debug("debug", map[string]interface{}{"k": 1})
		})
	}
}

func TestZapAdapter_Fields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapAdapter(zap.New(core))

	l.WithFields(map[string]interface{}{"batch_id": "b1"}).
		WithError(errors.New("kaputt")).
		Warn("recipient failed", map[string]interface{}{"position": 2})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "recipient failed", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "b1", fields["batch_id"])
	assert.Equal(t, int64(2), fields["position"])
	assert.Equal(t, "kaputt", fields["error"])
}

func TestNoOpLogger(t *testing.T) {
	l := NewNoOpLogger()
	l.Info("nothing", nil)
	l.Error("nothing", map[string]interface{}{"x": "y"})
}
