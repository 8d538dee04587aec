package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lintang-b-s/lintangdb/lib"
)

func TestConfig(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, lib.DB_DIR, c.DataDir)
		assert.Equal(t, lib.MAX_BUFFER_POOL_SIZE, c.PoolSize)
		assert.Equal(t, lib.BUFFER_POOL_SHARDS, c.PoolShards)
		assert.Equal(t, "info", c.LogLevel)
	})

	t.Run("load dari file hcl, sisanya default", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lintangdb.hcl")
		require.NoError(t, os.WriteFile(path, []byte(`
data_dir = "/tmp/lintang_test"
pool_size = 128
log_level = "debug"
`), 0644))

		c, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/lintang_test", c.DataDir)
		assert.Equal(t, 128, c.PoolSize)
		assert.Equal(t, "debug", c.LogLevel)
		assert.Equal(t, lib.PAGE_FILE_NAME, c.PageFileName)
		assert.Equal(t, lib.BUFFER_POOL_SHARDS, c.PoolShards)
	})

	t.Run("unknown key ditolak", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lintangdb.hcl")
		require.NoError(t, os.WriteFile(path, []byte(`bukan_config = 1`), 0644))

		_, err := Load(path)
		assert.ErrorContains(t, err, "is not a config variable")
	})

	t.Run("pool size invalid ditolak", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lintangdb.hcl")
		require.NoError(t, os.WriteFile(path, []byte(`pool_size = 0`), 0644))

		_, err := Load(path)
		assert.ErrorContains(t, err, "pool_size must be positive")
	})

	t.Run("file gak ada = error", func(t *testing.T) {
		_, err := Load("/definitely/not/exist.hcl")
		assert.Error(t, err)
	})
}
