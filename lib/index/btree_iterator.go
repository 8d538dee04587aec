package index

import (
	"iter"

	"github.com/lintang-b-s/lintangdb/lib/buffer"
	"github.com/lintang-b-s/lintangdb/types"
)

// IndexIterator. forward iterator di atas leaf chain btree. iterator megang read latch +
// pin di leaf yang lagi dibaca; pindah leaf lewat next pointer (unlatch & unpin leaf
// lama dulu). iterator tidak diinvalidate operasi di leaf lain.
type IndexIterator struct {
	bpm   BufferPoolManager
	frame *buffer.Frame
	leaf  *LeafPage
	index int
}

func newIndexIterator(bpm BufferPoolManager, frame *buffer.Frame, index int) *IndexIterator {
	it := &IndexIterator{
		bpm:   bpm,
		frame: frame,
		index: index,
	}
	if frame != nil {
		it.leaf = AsLeafPage(frame.Contents())
		if index >= it.leaf.GetSize() {
			it.advanceLeaf()
		}
	}
	return it
}

// IsEnd. true kalau iterator sudah melewati entry terakhir (end sentinel).
func (it *IndexIterator) IsEnd() bool {
	return it.frame == nil
}

func (it *IndexIterator) Key() int64 {
	return it.leaf.KeyAt(it.index)
}

func (it *IndexIterator) Value() types.RID {
	return it.leaf.ValueAt(it.index)
}

// Next. maju satu entry. lewat akhir leaf -> fetch next leaf, unpin leaf lama, reset
// index ke 0.
func (it *IndexIterator) Next() {
	if it.IsEnd() {
		return
	}

	it.index++
	if it.index >= it.leaf.GetSize() {
		it.advanceLeaf()
	}
}

func (it *IndexIterator) advanceLeaf() {
	nextPageID := it.leaf.GetNextPageID()

	it.frame.RUnlatch()
	it.bpm.UnpinPage(it.frame.GetPageID(), false)
	it.frame = nil
	it.leaf = nil
	it.index = 0

	if nextPageID == types.InvalidPageID {
		return
	}

	frame, err := it.bpm.FetchPage(nextPageID)
	if err != nil {
		return
	}
	frame.RLatch()
	it.frame = frame
	it.leaf = AsLeafPage(frame.Contents())

	if it.leaf.GetSize() == 0 {
		it.advanceLeaf()
	}
}

// Close. release latch & pin kalau iterator ditinggal sebelum sampai end.
func (it *IndexIterator) Close() {
	if it.frame != nil {
		it.frame.RUnlatch()
		it.bpm.UnpinPage(it.frame.GetPageID(), false)
		it.frame = nil
		it.leaf = nil
	}
}

// Begin. iterator dari entry paling kiri.
func (t *BPlusTree) Begin() *IndexIterator {
	frame, _, err := t.findLeafPage(0, FIND, nil, true, false)
	if err != nil || frame == nil {
		return newIndexIterator(t.bpm, nil, 0)
	}
	return newIndexIterator(t.bpm, frame, 0)
}

// BeginAt. iterator dari entry pertama dengan key >= target.
func (t *BPlusTree) BeginAt(key int64) *IndexIterator {
	frame, _, err := t.findLeafPage(key, FIND, nil, false, false)
	if err != nil || frame == nil {
		return newIndexIterator(t.bpm, nil, 0)
	}
	leaf := AsLeafPage(frame.Contents())
	return newIndexIterator(t.bpm, frame, leaf.KeyIndex(key, t.comparator))
}

// End. end sentinel.
func (t *BPlusTree) End() *IndexIterator {
	return newIndexIterator(t.bpm, nil, 0)
}

// Iterate. range scan dari key start sebagai Go iterator.
func (t *BPlusTree) Iterate(start int64) iter.Seq2[int64, types.RID] {
	return func(yield func(int64, types.RID) bool) {
		it := t.BeginAt(start)
		defer it.Close()
		for !it.IsEnd() {
			if !yield(it.Key(), it.Value()) {
				return
			}
			it.Next()
		}
	}
}
