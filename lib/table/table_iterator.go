package table

import (
	"github.com/lintang-b-s/lintangdb/types"
)

// TableIterator. jalan per page lewat next pointer, per slot di dalam page; slot yang
// deleted diskip.
type TableIterator struct {
	heap        *TableHeap
	currentPage types.PageID
	currentSlot int
	tupleCount  int
	nextPage    types.PageID
	done        bool
}

func newTableIterator(heap *TableHeap) *TableIterator {
	it := &TableIterator{heap: heap, currentPage: heap.firstPageID, currentSlot: -1}
	it.loadPageMeta()
	return it
}

func (it *TableIterator) loadPageMeta() {
	frame, err := it.heap.bpm.FetchPage(it.currentPage)
	if err != nil {
		it.done = true
		return
	}
	frame.RLatch()
	page := AsTablePage(frame.Contents())
	it.tupleCount = page.GetTupleCount()
	it.nextPage = page.GetNextPageID()
	frame.RUnlatch()
	it.heap.bpm.UnpinPage(it.currentPage, false)
}

// Next. return tuple berikutnya + rid nya. false kalau heap habis.
func (it *TableIterator) Next() ([]byte, types.RID, bool) {
	for !it.done {
		it.currentSlot++
		if it.currentSlot >= it.tupleCount {
			if it.nextPage == types.InvalidPageID {
				it.done = true
				return nil, types.RID{}, false
			}
			it.currentPage = it.nextPage
			it.currentSlot = -1
			it.loadPageMeta()
			continue
		}

		rid := types.NewRID(it.currentPage, types.SlotNum(it.currentSlot))
		if data, ok := it.heap.GetTuple(rid); ok {
			return data, rid, true
		}
		// deleted tuple, skip
	}
	return nil, types.RID{}, false
}
