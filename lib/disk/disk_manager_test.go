package disk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/lib/logger"
	"github.com/lintang-b-s/lintangdb/types"
)

func TestDiskManager(t *testing.T) {
	dm, err := NewDiskManager(t.TempDir(), lib.PAGE_FILE_NAME, lib.PAGE_SIZE, logger.NewDiscard())
	require.NoError(t, err)
	defer dm.Close()

	t.Run("write then read round trip", func(t *testing.T) {
		page := NewPage(lib.PAGE_SIZE)
		page.PutString(0, "halo disk manager")
		page.PutInt(128, 42)

		require.NoError(t, dm.WritePage(3, page))

		got := NewPage(lib.PAGE_SIZE)
		require.NoError(t, dm.ReadPage(3, got))
		assert.Equal(t, "halo disk manager", got.GetString(0))
		assert.Equal(t, int32(42), got.GetInt(128))
	})

	t.Run("read out of range", func(t *testing.T) {
		page := NewPage(lib.PAGE_SIZE)
		err := dm.ReadPage(100, page)
		assert.ErrorIs(t, err, ErrReadOutOfRange)
	})

	t.Run("allocate monoton, page 0 reserved", func(t *testing.T) {
		first := dm.AllocatePage()
		second := dm.AllocatePage()
		assert.NotEqual(t, types.PageID(lib.HEADER_PAGE_ID), first)
		assert.Equal(t, first+1, second)
	})

	t.Run("deallocated page id direuse", func(t *testing.T) {
		a := dm.AllocatePage()
		b := dm.AllocatePage()
		dm.DeallocatePage(a)
		assert.Equal(t, a, dm.AllocatePage())
		assert.Equal(t, b+1, dm.AllocatePage())
	})
}

func TestPageAccessors(t *testing.T) {
	page := NewPage(lib.PAGE_SIZE)

	page.PutInt64(0, -77)
	assert.Equal(t, int64(-77), page.GetInt64(0))

	page.PutUint16(8, 65535)
	assert.Equal(t, uint16(65535), page.GetUint16(8))

	page.PutBool(10, true)
	assert.True(t, page.GetBool(10))

	page.PutBytes(16, []byte("lintang"))
	assert.Equal(t, []byte("lintang"), page.GetBytes(16))

	_, err := page.PutBytes(int32(lib.PAGE_SIZE)-4, []byte("gak muat"))
	assert.Error(t, err)

	page.Reset()
	assert.Equal(t, int64(0), page.GetInt64(0))
	assert.False(t, page.GetBool(10))
}
