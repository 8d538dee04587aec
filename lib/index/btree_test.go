package index

import (
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/btree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/lib/buffer"
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/lib/logger"
	"github.com/lintang-b-s/lintangdb/types"
)

func newTestTree(t *testing.T, poolSize, leafMax, internalMax int) (*BPlusTree, *buffer.BufferPoolManager) {
	t.Helper()
	dm, err := disk.NewDiskManager(t.TempDir(), lib.PAGE_FILE_NAME, lib.PAGE_SIZE, logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	bpm := buffer.NewBufferPoolManager(poolSize, dm, nil, logger.NewDiscard())
	t.Cleanup(func() { bpm.Close() })

	tree, err := NewBPlusTree("test_index", bpm, IntegerComparator, leafMax, internalMax, logger.NewDiscard())
	require.NoError(t, err)
	return tree, bpm
}

func ridFor(key int64) types.RID {
	return types.NewRID(types.PageID(key), types.SlotNum(key))
}

// verifyTree. walk seluruh tree & assert invariant struktural: key strictly sorted,
// parent back-pointer konsisten, occupancy non-root >= min, size <= max. leaf chain tidak
// diwalk di sini; urutan scan dicek test lewat collectKeys.
func verifyTree(t *testing.T, tree *BPlusTree, bpm *buffer.BufferPoolManager) {
	t.Helper()
	if tree.IsEmpty() {
		return
	}
	verifyNode(t, bpm, tree.GetRootPageID(), types.InvalidPageID)
}

func verifyNode(t *testing.T, bpm *buffer.BufferPoolManager,
	pageID, expectedParent types.PageID) {
	t.Helper()

	frame, err := bpm.FetchPage(pageID)
	require.NoError(t, err)
	defer bpm.UnpinPage(pageID, false)

	node := AsBTreePage(frame.Contents())
	assert.Equal(t, expectedParent, node.GetParentPageID(), "parent pointer page %d", pageID)
	if !node.IsRootPage() {
		assert.GreaterOrEqual(t, node.GetSize(), node.GetMinSize(), "underflow page %d", pageID)
	}
	assert.LessOrEqual(t, node.GetSize(), node.GetMaxSize(), "overflow page %d", pageID)

	if node.IsLeafPage() {
		leaf := AsLeafPage(frame.Contents())
		for i := 1; i < leaf.GetSize(); i++ {
			assert.Less(t, leaf.KeyAt(i-1), leaf.KeyAt(i), "unsorted leaf %d", pageID)
		}
		return
	}

	internal := AsInternalPage(frame.Contents())
	for i := 2; i < internal.GetSize(); i++ {
		assert.Less(t, internal.KeyAt(i-1), internal.KeyAt(i), "unsorted internal %d", pageID)
	}
	for i := 0; i < internal.GetSize(); i++ {
		verifyNode(t, bpm, internal.ValueAt(i), pageID)
	}
}

func collectKeys(tree *BPlusTree) []int64 {
	var keys []int64
	for k := range tree.Iterate(-1 << 62) {
		keys = append(keys, k)
	}
	return keys
}

func TestBPlusTreeGrowShrink(t *testing.T) {
	tree, bpm := newTestTree(t, 50, 4, 4)

	t.Run("insert 1..5 splits into two leaves", func(t *testing.T) {
		for _, k := range []int64{1, 2, 3, 4, 5} {
			ok, err := tree.Insert(k, ridFor(k), nil)
			require.NoError(t, err)
			assert.True(t, ok)
		}

		for _, k := range []int64{1, 2, 3, 4, 5} {
			rid, ok := tree.GetValue(k)
			require.True(t, ok, "key %d", k)
			assert.Equal(t, ridFor(k), rid)
		}

		// root = internal dengan dua leaf [1,2] & [3,4,5]
		rootFrame, err := bpm.FetchPage(tree.GetRootPageID())
		require.NoError(t, err)
		root := AsInternalPage(rootFrame.Contents())
		require.False(t, root.IsLeafPage())
		require.Equal(t, 2, root.GetSize())

		leftFrame, err := bpm.FetchPage(root.ValueAt(0))
		require.NoError(t, err)
		left := AsLeafPage(leftFrame.Contents())
		assert.Equal(t, 2, left.GetSize())
		assert.Equal(t, int64(1), left.KeyAt(0))
		assert.Equal(t, int64(2), left.KeyAt(1))

		rightFrame, err := bpm.FetchPage(root.ValueAt(1))
		require.NoError(t, err)
		right := AsLeafPage(rightFrame.Contents())
		assert.Equal(t, 3, right.GetSize())
		assert.Equal(t, int64(3), right.KeyAt(0))
		assert.Equal(t, int64(5), right.KeyAt(2))

		// leaf chain: left -> right
		assert.Equal(t, right.GetPageID(), left.GetNextPageID())
		assert.Equal(t, types.InvalidPageID, right.GetNextPageID())

		bpm.UnpinPage(leftFrame.GetPageID(), false)
		bpm.UnpinPage(rightFrame.GetPageID(), false)
		bpm.UnpinPage(rootFrame.GetPageID(), false)

		verifyTree(t, tree, bpm)
	})

	t.Run("remove 5 4 3 collapses back to single leaf root", func(t *testing.T) {
		for _, k := range []int64{5, 4, 3} {
			require.NoError(t, tree.Remove(k, nil))
		}

		rootFrame, err := bpm.FetchPage(tree.GetRootPageID())
		require.NoError(t, err)
		root := AsLeafPage(rootFrame.Contents())
		assert.True(t, root.IsLeafPage())
		assert.Equal(t, 2, root.GetSize())
		assert.Equal(t, int64(1), root.KeyAt(0))
		assert.Equal(t, int64(2), root.KeyAt(1))
		bpm.UnpinPage(rootFrame.GetPageID(), false)

		verifyTree(t, tree, bpm)
	})

	t.Run("remove sisa keys bikin tree kosong", func(t *testing.T) {
		require.NoError(t, tree.Remove(1, nil))
		require.NoError(t, tree.Remove(2, nil))
		assert.True(t, tree.IsEmpty())

		_, ok := tree.GetValue(1)
		assert.False(t, ok)
	})
}

func TestBPlusTreeBasic(t *testing.T) {
	tree, bpm := newTestTree(t, 50, 4, 4)

	t.Run("duplicate insert returns false tanpa mutate", func(t *testing.T) {
		ok, err := tree.Insert(7, ridFor(7), nil)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tree.Insert(7, types.NewRID(99, 99), nil)
		require.NoError(t, err)
		assert.False(t, ok)

		rid, found := tree.GetValue(7)
		require.True(t, found)
		assert.Equal(t, ridFor(7), rid)
	})

	t.Run("remove key yang gak ada = no-op", func(t *testing.T) {
		require.NoError(t, tree.Remove(12345, nil))
		_, found := tree.GetValue(7)
		assert.True(t, found)
	})

	t.Run("iterator forward dari key tertentu", func(t *testing.T) {
		for _, k := range []int64{10, 20, 30, 40, 50, 60} {
			_, err := tree.Insert(k, ridFor(k), nil)
			require.NoError(t, err)
		}

		it := tree.BeginAt(25)
		var got []int64
		for !it.IsEnd() {
			got = append(got, it.Key())
			it.Next()
		}
		assert.Equal(t, []int64{30, 40, 50, 60}, got)

		verifyTree(t, tree, bpm)
	})
}

// differential test lawan google/btree sebagai in-memory oracle.
func TestBPlusTreeRandomVsOracle(t *testing.T) {
	tree, bpm := newTestTree(t, 100, 8, 8)
	faker := gofakeit.New(11)

	oracle := btree.NewG[int64](8, func(a, b int64) bool { return a < b })

	keys := make(map[int64]struct{})
	for len(keys) < 2000 {
		k := int64(faker.Number(0, 1_000_000))
		if _, dup := keys[k]; dup {
			continue
		}
		keys[k] = struct{}{}

		ok, err := tree.Insert(k, ridFor(k), nil)
		require.NoError(t, err)
		require.True(t, ok)
		oracle.ReplaceOrInsert(k)
	}

	t.Run("scan order sama dengan oracle", func(t *testing.T) {
		var expected []int64
		oracle.Ascend(func(k int64) bool {
			expected = append(expected, k)
			return true
		})
		assert.Equal(t, expected, collectKeys(tree))
		verifyTree(t, tree, bpm)
	})

	t.Run("delete separuh keys, scan tetap sama", func(t *testing.T) {
		i := 0
		for k := range keys {
			if i%2 == 0 {
				require.NoError(t, tree.Remove(k, nil))
				oracle.Delete(k)
				delete(keys, k)
			}
			i++
		}

		var expected []int64
		oracle.Ascend(func(k int64) bool {
			expected = append(expected, k)
			return true
		})
		assert.Equal(t, expected, collectKeys(tree))
		verifyTree(t, tree, bpm)

		for k := range keys {
			_, found := tree.GetValue(k)
			assert.True(t, found, "key %d", k)
		}
	})
}

func TestBPlusTreeConcurrent(t *testing.T) {
	tree, bpm := newTestTree(t, 200, 16, 16)

	const workers = 8
	const perWorker = 250

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			base := int64(w * perWorker)
			for i := int64(0); i < perWorker; i++ {
				k := base + i
				_, err := tree.Insert(k, ridFor(k), nil)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	for k := int64(0); k < workers*perWorker; k++ {
		rid, found := tree.GetValue(k)
		require.True(t, found, "key %d", k)
		assert.Equal(t, ridFor(k), rid)
	}

	keys := collectKeys(tree)
	assert.Len(t, keys, workers*perWorker)
	verifyTree(t, tree, bpm)

	// concurrent deletes + point reads di key range yang gak didelete
	var wg2 sync.WaitGroup
	for w := 0; w < workers/2; w++ {
		wg2.Add(1)
		go func(w int) {
			defer wg2.Done()
			for k := int64(w); k < workers*perWorker/2; k += int64(workers / 2) {
				assert.NoError(t, tree.Remove(k, nil))
			}
		}(w)
		wg2.Add(1)
		go func(w int) {
			defer wg2.Done()
			// separuh atas gak pernah didelete, harus selalu kebaca
			for k := int64(workers * perWorker / 2); k < workers*perWorker; k += 7 {
				_, found := tree.GetValue(k)
				assert.True(t, found, "key %d", k)
			}
		}(w)
	}
	wg2.Wait()
	verifyTree(t, tree, bpm)

	for k := int64(0); k < workers*perWorker/2; k++ {
		_, found := tree.GetValue(k)
		assert.False(t, found, "deleted key %d still visible", k)
	}
}
