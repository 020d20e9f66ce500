package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMake_Writer(t *testing.T) {
	var buf bytes.Buffer
	log, err := New().ToWriter(&buf).Level("warn").Make()
	require.NoError(t, err)

	log.Logger.Info().Msg("quiet")
	log.Logger.Warn().Str("op", "delete node").Msg("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), `"op":"delete node"`)
	assert.NoError(t, log.Close())
}

func TestMake_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := New().ToWriter(&buf).Console(true).Level("debug").Make()
	require.NoError(t, err)
	log.Logger.Debug().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestMake_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.log")
	log, err := New().ToFile(path).Make()
	require.NoError(t, err)
	log.Logger.Info().Msg("written")
	require.NoError(t, log.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "written")
}

func TestMake_BadLevel(t *testing.T) {
	_, err := New().Level("loudest").Make()
	assert.Error(t, err)
}
