package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl"

	"github.com/lintang-b-s/lintangdb/lib"
)

// Config. runtime configuration dari database. semua field ada defaultnya,
// bisa dioverride lewat file hcl & cli flags.
type Config struct {
	DataDir      string `hcl:"data_dir"`
	PageFileName string `hcl:"page_file"`
	LogFileName  string `hcl:"log_file"`
	PoolSize     int    `hcl:"pool_size"`
	PoolShards   int    `hcl:"pool_shards"`
	LogLevel     string `hcl:"log_level"`
}

func Default() *Config {
	return &Config{
		DataDir:      lib.DB_DIR,
		PageFileName: lib.PAGE_FILE_NAME,
		LogFileName:  lib.LOG_FILE_NAME,
		PoolSize:     lib.MAX_BUFFER_POOL_SIZE,
		PoolShards:   lib.BUFFER_POOL_SHARDS,
		LogLevel:     "info",
	}
}

// Load. baca config file hcl & merge dengan default. key yang tidak dikenal = error.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := c.load(b); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) load(b []byte) error {
	var raw map[string]interface{}
	if err := hcl.Decode(&raw, string(b)); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for name := range raw {
		switch name {
		case "data_dir", "page_file", "log_file", "pool_size", "pool_shards", "log_level":
		default:
			return fmt.Errorf("config: %s is not a config variable", name)
		}
	}

	if err := hcl.Decode(c, string(b)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.PoolSize <= 0 {
		return fmt.Errorf("config: pool_size must be positive, got %d", c.PoolSize)
	}
	if c.PoolShards <= 0 {
		return fmt.Errorf("config: pool_shards must be positive, got %d", c.PoolShards)
	}
	return nil
}
