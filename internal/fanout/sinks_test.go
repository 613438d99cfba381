package fanout

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirSink_Write(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink, err := NewDirSink(dir)
	require.NoError(t, err)

	location, err := sink.Write(context.Background(), "a.docx", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.docx"), location)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "临时文件应已被重命名")
}

func TestDirSink_RejectsPaths(t *testing.T) {
	sink, err := NewDirSink(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "../a.docx", "sub/a.docx"} {
		_, err := sink.Write(context.Background(), name, []byte("x"))
		assert.Error(t, err, name)
	}
}

func TestDirSink_CancelledContext(t *testing.T) {
	sink, err := NewDirSink(t.TempDir())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = sink.Write(ctx, "a.docx", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDirSink_EmptyDir(t *testing.T) {
	_, err := NewDirSink("")
	assert.Error(t, err)
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	payload := []byte("abc")

	location, err := sink.Write(context.Background(), "b.docx", payload)
	require.NoError(t, err)
	assert.Equal(t, "memory://b.docx", location)

	payload[0] = 'x'
	got, ok := sink.Get("b.docx")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, []string{"b.docx"}, sink.Names())
}
