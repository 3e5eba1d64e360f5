package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "127.0.0.1", cfg.Host)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "./www", cfg.RootDir)
	require.False(t, cfg.AllowDirectoryListing)
	require.Equal(t, int64(100*1024*1024), cfg.Cache.MaxSizeBytes)
}

func TestLoadOverridesAndFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.conf")

	contents := "" +
		"# comment line\n" +
		"\n" +
		"host = 0.0.0.0\n" +
		"port = 9090\n" +
		"allow_directory_listing = true\n" +
		"port_typo_ignored_key = whatever\n" +
		"file_cache_max_entries = not-a-number\n" +
		"log_level = debug\n"

	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "0.0.0.0", cfg.Host)
	require.Equal(t, 9090, cfg.Port)
	require.True(t, cfg.AllowDirectoryListing)
	// unparsable int falls back to the default rather than zero
	require.Equal(t, 1000, cfg.Cache.MaxEntries)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.conf"))
	require.Error(t, err)
}

func TestAddr(t *testing.T) {
	cfg := Default()
	require.Equal(t, "127.0.0.1:8080", cfg.Addr())
}

func TestAddrBracketsIPv6Host(t *testing.T) {
	cfg := Default()
	cfg.Host = "::1"

	require.Equal(t, "[::1]:8080", cfg.Addr())
}
