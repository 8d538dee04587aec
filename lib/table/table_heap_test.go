package table

import (
	"fmt"
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

func newTestHeap(t *testing.T) *TableHeap {
	t.Helper()
	dm, err := disk.NewDiskManager(t.TempDir(), lib.PAGE_FILE_NAME, lib.PAGE_SIZE, logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	bpm := buffer.NewBufferPoolManager(20, dm, nil, logger.NewDiscard())
	t.Cleanup(func() { bpm.Close() })

	heap, err := NewTableHeap(bpm, logger.NewDiscard())
	require.NoError(t, err)
	return heap
}

func TestTableHeap(t *testing.T) {
	heap := newTestHeap(t)

	t.Run("insert lalu get", func(t *testing.T) {
		rid, err := heap.InsertTuple([]byte("baris pertama"))
		require.NoError(t, err)

		data, ok := heap.GetTuple(rid)
		require.True(t, ok)
		assert.Equal(t, []byte("baris pertama"), data)
	})

	t.Run("insert lebih dari satu page", func(t *testing.T) {
		faker := gofakeit.New(3)
		rids := make(map[types.RID]string)

		// tuple 512 byte, satu page cuma muat beberapa
		for i := 0; i < 40; i++ {
			row := make([]byte, 512)
			copy(row, fmt.Sprintf("row-%d-%s", i, faker.LetterN(32)))
			rid, err := heap.InsertTuple(row)
			require.NoError(t, err)
			rids[rid] = string(row[:16])
		}

		pages := make(map[types.PageID]struct{})
		for rid := range rids {
			pages[rid.GetPageID()] = struct{}{}
		}
		assert.Greater(t, len(pages), 1)

		for rid, prefix := range rids {
			data, ok := heap.GetTuple(rid)
			require.True(t, ok)
			assert.Equal(t, prefix, string(data[:16]))
		}
	})

	t.Run("iterator jalanin semua tuple, skip yang deleted", func(t *testing.T) {
		count := 0
		var firstRID types.RID
		it := heap.Iterator()
		for {
			_, rid, ok := it.Next()
			if !ok {
				break
			}
			if count == 0 {
				firstRID = rid
			}
			count++
		}
		require.Equal(t, 41, count)

		require.True(t, heap.MarkDelete(firstRID))
		_, ok := heap.GetTuple(firstRID)
		assert.False(t, ok)

		count = 0
		it = heap.Iterator()
		for {
			_, _, ok := it.Next()
			if !ok {
				break
			}
			count++
		}
		assert.Equal(t, 40, count)
	})

	t.Run("double delete = false, rollback balikin tuple", func(t *testing.T) {
		rid, err := heap.InsertTuple([]byte("buat dihapus"))
		require.NoError(t, err)

		require.True(t, heap.MarkDelete(rid))
		assert.False(t, heap.MarkDelete(rid))

		heap.RollbackDelete(rid)
		data, ok := heap.GetTuple(rid)
		require.True(t, ok)
		assert.Equal(t, []byte("buat dihapus"), data)
	})
}
