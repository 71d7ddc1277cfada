package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWithOptionsRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := SetupWithOptions(Options{Service: "vaultd", Env: "test", Level: "debug", Output: &buf})
	defer closer.Close()

	logger.Debug("harvested", "strategy", "0xabc")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "harvested", record["message"])
	require.Equal(t, "DEBUG", record["severity"])
	require.Equal(t, "vaultd", record["service"])
	require.Equal(t, "test", record["env"])
	require.Contains(t, record, "timestamp")
}

func TestSetupWithOptionsWritesRotatedFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "vaultd.log")
	logger, closer := SetupWithOptions(Options{Service: "vaultd", Output: &buf, File: &FileSink{Path: path, MaxSizeMB: 1}})
	logger.Info("started")
	require.NoError(t, closer.Close())
	require.FileExists(t, path)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelWarn, ParseLevel("WARNING"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
}

func TestMaskHeaders(t *testing.T) {
	attrs := MaskHeaders(map[string]string{"authorization": "Bearer x", "endpoint": "collector:4318"})
	require.Len(t, attrs, 2)
	require.Equal(t, RedactedValue, attrs[0].Value.String())
	require.Equal(t, "collector:4318", attrs[1].Value.String())
	require.Contains(t, RedactionAllowlist(), "strategy")
}
