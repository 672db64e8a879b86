package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default.PortBegin, c.PortBegin)
	require.Equal(t, Default.DHTEnabled, c.DHTEnabled)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	c := Default
	c.DataDir = "/tmp/downloads"
	c.PortBegin = 51413
	c.RPCPort = 9092

	require.NoError(t, Save(path, &c))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/downloads", loaded.DataDir)
	require.Equal(t, uint16(51413), loaded.PortBegin)
	require.Equal(t, uint16(9092), loaded.RPCPort)
}

func TestLoadMergesOverDefaultsNotReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download_dir: /custom\n"), 0640))

	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/custom", c.DataDir)
	// Fields absent from the partial file keep their Default value.
	require.Equal(t, Default.PortBegin, c.PortBegin)
	require.Equal(t, Default.MaxPeerAccept, c.MaxPeerAccept)
}
