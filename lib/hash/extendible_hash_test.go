package hash

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/lib/buffer"
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/lib/logger"
	"github.com/lintang-b-s/lintangdb/types"
)

func newTestHashTable(t *testing.T, hashFn HashFunc, bucketCapacity int) (*ExtendibleHashTable, *buffer.BufferPoolManager) {
	t.Helper()
	dm, err := disk.NewDiskManager(t.TempDir(), lib.PAGE_FILE_NAME, lib.PAGE_SIZE, logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	bpm := buffer.NewBufferPoolManager(50, dm, nil, logger.NewDiscard())
	t.Cleanup(func() { bpm.Close() })

	ht, err := NewExtendibleHashTable("test_hash", bpm, hashFn, bucketCapacity, logger.NewDiscard())
	require.NoError(t, err)
	return ht, bpm
}

func hashRID(key int64) types.RID {
	return types.NewRID(types.PageID(key), types.SlotNum(key))
}

// identityHash. test pakai hash deterministik biar distribusi slot nya bisa dikontrol.
func identityHash(key int64) uint32 {
	return uint32(key)
}

func TestExtendibleHashSplit(t *testing.T) {
	// bucket muat 2 entry; key = hash nya sendiri.
	ht, _ := newTestHashTable(t, identityHash, 2)

	t.Run("dua insert pertama ngisi bucket 0", func(t *testing.T) {
		ok, err := ht.Insert(0b00, hashRID(0b00))
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = ht.Insert(0b01, hashRID(0b01))
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Equal(t, uint32(0), ht.GetGlobalDepth())
		ht.VerifyIntegrity()
	})

	t.Run("insert ketiga men-trigger directory doubling + split", func(t *testing.T) {
		ok, err := ht.Insert(0b11, hashRID(0b11))
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Equal(t, uint32(1), ht.GetGlobalDepth())

		dirFrame, dir, err := ht.fetchDirectory()
		require.NoError(t, err)
		assert.NotEqual(t, dir.GetBucketPageID(0), dir.GetBucketPageID(1))
		assert.Equal(t, uint32(1), dir.GetLocalDepth(0))
		assert.Equal(t, uint32(1), dir.GetLocalDepth(1))
		ht.bpm.UnpinPage(dirFrame.GetPageID(), false)

		// low bit 0 -> bucket 0: {0b00}; low bit 1 -> bucket 1: {0b01, 0b11}
		for _, k := range []int64{0b00, 0b01, 0b11} {
			rids, err := ht.GetValue(k)
			require.NoError(t, err)
			require.Len(t, rids, 1, "key %d", k)
			assert.Equal(t, hashRID(k), rids[0])
		}
		ht.VerifyIntegrity()
	})

	t.Run("split berulang sampai semua key kepisah", func(t *testing.T) {
		// 0b101 & 0b01/0b11 share low bit 1; perlu depth 2 buat misahin 0b01 dari 0b11
		ok, err := ht.Insert(0b101, hashRID(0b101))
		require.NoError(t, err)
		assert.True(t, ok)
		ht.VerifyIntegrity()

		for _, k := range []int64{0b00, 0b01, 0b11, 0b101} {
			rids, err := ht.GetValue(k)
			require.NoError(t, err)
			require.Len(t, rids, 1, "key %d", k)
		}
	})
}

func TestExtendibleHashBasic(t *testing.T) {
	ht, _ := newTestHashTable(t, nil, DefaultBucketCapacity(lib.PAGE_SIZE))

	t.Run("insert get remove round trip", func(t *testing.T) {
		ok, err := ht.Insert(42, hashRID(42))
		require.NoError(t, err)
		assert.True(t, ok)

		rids, err := ht.GetValue(42)
		require.NoError(t, err)
		require.Len(t, rids, 1)
		assert.Equal(t, hashRID(42), rids[0])

		removed, err := ht.Remove(42, hashRID(42))
		require.NoError(t, err)
		assert.True(t, removed)

		rids, err = ht.GetValue(42)
		require.NoError(t, err)
		assert.Empty(t, rids)
	})

	t.Run("duplicate pair ditolak, same key beda rid boleh", func(t *testing.T) {
		ok, err := ht.Insert(7, hashRID(7))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = ht.Insert(7, hashRID(7))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = ht.Insert(7, types.NewRID(70, 70))
		require.NoError(t, err)
		assert.True(t, ok)

		rids, err := ht.GetValue(7)
		require.NoError(t, err)
		assert.Len(t, rids, 2)
	})

	t.Run("double remove = no-op", func(t *testing.T) {
		removed, err := ht.Remove(7, hashRID(7))
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = ht.Remove(7, hashRID(7))
		require.NoError(t, err)
		assert.False(t, removed)
	})
}

func TestExtendibleHashMergeShrink(t *testing.T) {
	ht, _ := newTestHashTable(t, identityHash, 2)

	// grow ke g=1
	for _, k := range []int64{0b00, 0b01, 0b11} {
		ok, err := ht.Insert(k, hashRID(k))
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Equal(t, uint32(1), ht.GetGlobalDepth())

	// kosongin bucket 1: merge ke image nya & directory shrink balik ke g=0
	for _, k := range []int64{0b11, 0b01} {
		removed, err := ht.Remove(k, hashRID(k))
		require.NoError(t, err)
		require.True(t, removed)
	}

	assert.Equal(t, uint32(0), ht.GetGlobalDepth())
	ht.VerifyIntegrity()

	rids, err := ht.GetValue(0b00)
	require.NoError(t, err)
	require.Len(t, rids, 1)
}

func TestExtendibleHashGrowAndShrink(t *testing.T) {
	// kapasitas kecil biar split & merge sering kejadian
	ht, _ := newTestHashTable(t, identityHash, 4)
	faker := gofakeit.New(7)

	keys := make(map[int64]struct{})
	for len(keys) < 300 {
		k := int64(faker.Number(0, 1<<16))
		keys[k] = struct{}{}
	}
	var depthAfterInsert uint32

	t.Run("insert banyak key, invariant kejaga", func(t *testing.T) {
		i := 0
		for k := range keys {
			ok, err := ht.Insert(k, hashRID(k))
			require.NoError(t, err)
			require.True(t, ok, "key %d", k)
			if i%50 == 0 {
				ht.VerifyIntegrity()
			}
			i++
		}
		ht.VerifyIntegrity()
		depthAfterInsert = ht.GetGlobalDepth()
		assert.Greater(t, depthAfterInsert, uint32(0))

		for k := range keys {
			rids, err := ht.GetValue(k)
			require.NoError(t, err)
			require.Len(t, rids, 1, "key %d", k)
		}
	})

	t.Run("remove semua key, directory shrink", func(t *testing.T) {
		i := 0
		for k := range keys {
			removed, err := ht.Remove(k, hashRID(k))
			require.NoError(t, err)
			require.True(t, removed, "key %d", k)
			if i%50 == 0 {
				ht.VerifyIntegrity()
			}
			i++
		}
		ht.VerifyIntegrity()

		for k := range keys {
			rids, err := ht.GetValue(k)
			require.NoError(t, err)
			assert.Empty(t, rids)
		}
		// merge gak cascading, jadi depth akhir gak harus 0; yang pasti gak boleh naik
		assert.LessOrEqual(t, ht.GetGlobalDepth(), depthAfterInsert)
	})
}
