// Package config loads the server's key = value configuration file and
// exposes it as a typed Config struct with well-defined defaults.
package config

import (
	"bufio"
	"net"
	"os"
	"strconv"
	"strings"
)

// Cache groups the file cache's three independent bounds.
type Cache struct {
	// MaxSizeBytes is the ceiling on the sum of cached bodies' sizes.
	MaxSizeBytes int64
	// MaxEntries is the ceiling on the number of cache entries.
	MaxEntries int
	// MaxFileSizeBytes is the per-file cutoff above which a file bypasses
	// the cache and is streamed instead.
	MaxFileSizeBytes int64
}

// Config holds every setting the server reads, grouped the way
// indigo-web/indigo's config.Config groups NET/Headers/Body settings, filled
// with defaults unless overridden by a loaded file.
type Config struct {
	Host string
	Port int

	RootDir               string
	AllowDirectoryListing bool

	Cache Cache

	LogFile  string
	LogLevel string

	EnablePerformanceMonitoring bool
}

// Default returns a Config with this server's documented defaults.
// You should always start from Default and override fields from a loaded
// file, never build a Config from scratch — missing fields would silently
// behave as zero values instead of the documented defaults.
func Default() *Config {
	return &Config{
		Host:                  "127.0.0.1",
		Port:                  8080,
		RootDir:               "./www",
		AllowDirectoryListing: false,
		Cache: Cache{
			MaxSizeBytes:     100 * 1024 * 1024,
			MaxEntries:       1000,
			MaxFileSizeBytes: 5 * 1024 * 1024,
		},
		LogFile:                     "",
		LogLevel:                    "info",
		EnablePerformanceMonitoring: false,
	}
}

// Load reads a line-oriented "key = value" file, with "#" comments and
// trimmed whitespace, following original_source's Config::loadFromFile.
// Missing keys keep their Default(); unparsable int/bool values fall back
// to the default for that key rather than failing the whole load.
func Load(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	raw := make(map[string]string)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		raw[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	cfg.apply(raw)

	return cfg, nil
}

func (c *Config) apply(raw map[string]string) {
	if v, ok := raw["host"]; ok {
		c.Host = v
	}
	if v, ok := getInt(raw, "port"); ok {
		c.Port = v
	}
	if v, ok := raw["root_dir"]; ok {
		c.RootDir = v
	}
	if v, ok := getBool(raw, "allow_directory_listing"); ok {
		c.AllowDirectoryListing = v
	}
	if v, ok := getInt(raw, "file_cache_max_size"); ok {
		c.Cache.MaxSizeBytes = int64(v) * 1024 * 1024
	}
	if v, ok := getInt(raw, "file_cache_max_entries"); ok {
		c.Cache.MaxEntries = v
	}
	if v, ok := getInt(raw, "file_cache_max_file_size"); ok {
		c.Cache.MaxFileSizeBytes = int64(v) * 1024 * 1024
	}
	if v, ok := raw["log_file"]; ok {
		c.LogFile = v
	}
	if v, ok := raw["log_level"]; ok {
		c.LogLevel = v
	}
	if v, ok := getBool(raw, "enable_performance_monitoring"); ok {
		c.EnablePerformanceMonitoring = v
	}
}

func getInt(raw map[string]string, key string) (int, bool) {
	v, ok := raw[key]
	if !ok {
		return 0, false
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}

	return n, true
}

func getBool(raw map[string]string, key string) (bool, bool) {
	v, ok := raw[key]
	if !ok {
		return false, false
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}

	return b, true
}

// Addr formats the listen address for net.Listen / unix.Bind. Uses
// net.JoinHostPort rather than plain concatenation so an IPv6 literal host
// (e.g. "::1") comes out bracketed ("[::1]:8080") instead of unparseable.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
