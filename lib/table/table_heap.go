package table

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/lintang-b-s/lintangdb/lib/buffer"
	"github.com/lintang-b-s/lintangdb/types"
)

type BufferPoolManager interface {
	NewPage() (*buffer.Frame, error)
	FetchPage(pageID types.PageID) (*buffer.Frame, error)
	UnpinPage(pageID types.PageID, isDirty bool) bool
}

// TableHeap. row store: doubly linked list dari TablePage. rid (pageID, slot) dari sini
// yang jadi target row-level lock di lock manager.
type TableHeap struct {
	bpm         BufferPoolManager
	firstPageID types.PageID
	logger      *log.Logger
}

// NewTableHeap. bikin heap baru dengan satu page kosong.
func NewTableHeap(bpm BufferPoolManager, logger *log.Logger) (*TableHeap, error) {
	frame, err := bpm.NewPage()
	if err != nil {
		return nil, fmt.Errorf("table heap out of memory: %w", err)
	}

	first := AsTablePage(frame.Contents())
	first.Init(frame.GetPageID(), types.InvalidPageID)
	bpm.UnpinPage(frame.GetPageID(), true)

	return &TableHeap{bpm: bpm, firstPageID: frame.GetPageID(), logger: logger}, nil
}

// OpenTableHeap. buka heap yang sudah ada dari first page id nya.
func OpenTableHeap(bpm BufferPoolManager, firstPageID types.PageID, logger *log.Logger) *TableHeap {
	return &TableHeap{bpm: bpm, firstPageID: firstPageID, logger: logger}
}

func (th *TableHeap) GetFirstPageID() types.PageID {
	return th.firstPageID
}

// InsertTuple. insert tuple ke page pertama yang muat, jalan lewat next pointer; append
// page baru di akhir kalau semua penuh.
func (th *TableHeap) InsertTuple(data []byte) (types.RID, error) {
	pageID := th.firstPageID

	for {
		frame, err := th.bpm.FetchPage(pageID)
		if err != nil {
			return types.RID{}, err
		}
		frame.WLatch()
		page := AsTablePage(frame.Contents())

		if slot, ok := page.InsertTuple(data); ok {
			frame.WUnlatch()
			th.bpm.UnpinPage(pageID, true)
			return types.NewRID(pageID, slot), nil
		}

		next := page.GetNextPageID()
		if next != types.InvalidPageID {
			frame.WUnlatch()
			th.bpm.UnpinPage(pageID, false)
			pageID = next
			continue
		}

		// semua page penuh: append page baru di akhir list.
		newFrame, err := th.bpm.NewPage()
		if err != nil {
			frame.WUnlatch()
			th.bpm.UnpinPage(pageID, false)
			return types.RID{}, fmt.Errorf("table heap out of memory: %w", err)
		}
		newPage := AsTablePage(newFrame.Contents())
		newPage.Init(newFrame.GetPageID(), pageID)

		// tuple masuk dulu sebelum page baru dilink ke list, biar thread lain yang lagi
		// jalan di chain gak liat page setengah jadi.
		slot, ok := newPage.InsertTuple(data)
		if !ok {
			frame.WUnlatch()
			th.bpm.UnpinPage(pageID, false)
			th.bpm.UnpinPage(newFrame.GetPageID(), true)
			return types.RID{}, fmt.Errorf("tuple %d bytes does not fit in an empty page", len(data))
		}

		page.SetNextPageID(newFrame.GetPageID())
		frame.WUnlatch()
		th.bpm.UnpinPage(pageID, true)
		th.bpm.UnpinPage(newFrame.GetPageID(), true)
		return types.NewRID(newFrame.GetPageID(), slot), nil
	}
}

// GetTuple. baca tuple by rid.
func (th *TableHeap) GetTuple(rid types.RID) ([]byte, bool) {
	frame, err := th.bpm.FetchPage(rid.GetPageID())
	if err != nil {
		return nil, false
	}
	frame.RLatch()
	page := AsTablePage(frame.Contents())
	data, ok := page.GetTuple(rid.GetSlot())
	frame.RUnlatch()
	th.bpm.UnpinPage(rid.GetPageID(), false)
	return data, ok
}

// MarkDelete. tombstone tuple by rid.
func (th *TableHeap) MarkDelete(rid types.RID) bool {
	frame, err := th.bpm.FetchPage(rid.GetPageID())
	if err != nil {
		return false
	}
	frame.WLatch()
	page := AsTablePage(frame.Contents())
	ok := page.MarkDelete(rid.GetSlot())
	frame.WUnlatch()
	th.bpm.UnpinPage(rid.GetPageID(), ok)
	return ok
}

// RollbackDelete. batalin tombstone (abort path).
func (th *TableHeap) RollbackDelete(rid types.RID) {
	frame, err := th.bpm.FetchPage(rid.GetPageID())
	if err != nil {
		return
	}
	frame.WLatch()
	page := AsTablePage(frame.Contents())
	page.RollbackDelete(rid.GetSlot())
	frame.WUnlatch()
	th.bpm.UnpinPage(rid.GetPageID(), true)
}

// Iterator. iterator dari tuple pertama di heap.
func (th *TableHeap) Iterator() *TableIterator {
	return newTableIterator(th)
}
