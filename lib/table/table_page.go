package table

import (
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/types"
)

// TablePage. slotted page buat row store. slot array tumbuh dari depan (setelah header),
// tuple data tumbuh dari belakang page. delete = mark bit di slot size (tombstone), space
// nya tidak direclaim.
//
// header: | pageID (4) | lsn (4) | prevPageID (4) | nextPageID (4) | freeSpacePointer (4) | tupleCount (4) |
// slot:   | tupleOffset (4) | tupleSize (4) |
type TablePage struct {
	page *disk.Page
}

const (
	offsetTablePageID = 0
	offsetLSN         = 4
	offsetPrevPageID  = 8
	offsetNextPageID  = 12
	offsetFreeSpace   = 16
	offsetTupleCount  = 20

	tablePageHeaderSize = 24
	slotSize            = 8

	// high bit dari slot size dipakai buat mark deleted tuple
	deleteMask = uint32(1) << 31
)

func AsTablePage(page *disk.Page) *TablePage {
	return &TablePage{page: page}
}

func (tp *TablePage) Init(pageID, prevPageID types.PageID) {
	tp.page.PutInt(offsetTablePageID, int32(pageID))
	tp.page.PutInt(offsetLSN, int32(types.InvalidLSN))
	tp.page.PutInt(offsetPrevPageID, int32(prevPageID))
	tp.page.PutInt(offsetNextPageID, int32(types.InvalidPageID))
	tp.page.PutInt(offsetFreeSpace, int32(len(tp.page.Contents())))
	tp.page.PutInt(offsetTupleCount, 0)
}

func (tp *TablePage) GetPageID() types.PageID {
	return types.PageID(tp.page.GetInt(offsetTablePageID))
}

func (tp *TablePage) GetLSN() types.LSN {
	return types.LSN(tp.page.GetInt(offsetLSN))
}

func (tp *TablePage) SetLSN(lsn types.LSN) {
	tp.page.PutInt(offsetLSN, int32(lsn))
}

func (tp *TablePage) GetPrevPageID() types.PageID {
	return types.PageID(tp.page.GetInt(offsetPrevPageID))
}

func (tp *TablePage) SetPrevPageID(prev types.PageID) {
	tp.page.PutInt(offsetPrevPageID, int32(prev))
}

func (tp *TablePage) GetNextPageID() types.PageID {
	return types.PageID(tp.page.GetInt(offsetNextPageID))
}

func (tp *TablePage) SetNextPageID(next types.PageID) {
	tp.page.PutInt(offsetNextPageID, int32(next))
}

func (tp *TablePage) GetTupleCount() int {
	return int(tp.page.GetInt(offsetTupleCount))
}

func (tp *TablePage) setTupleCount(count int) {
	tp.page.PutInt(offsetTupleCount, int32(count))
}

func (tp *TablePage) getFreeSpacePointer() int32 {
	return tp.page.GetInt(offsetFreeSpace)
}

func (tp *TablePage) setFreeSpacePointer(ptr int32) {
	tp.page.PutInt(offsetFreeSpace, ptr)
}

func (tp *TablePage) slotOffset(slot int) int32 {
	return tablePageHeaderSize + int32(slot)*slotSize
}

func (tp *TablePage) getTupleOffset(slot int) int32 {
	return tp.page.GetInt(tp.slotOffset(slot))
}

func (tp *TablePage) getTupleSize(slot int) uint32 {
	return tp.page.GetUint32(tp.slotOffset(slot) + 4)
}

func (tp *TablePage) isDeleted(slot int) bool {
	return tp.getTupleSize(slot)&deleteMask != 0
}

// freeSpaceRemaining. sisa byte antara akhir slot array & awal tuple data.
func (tp *TablePage) freeSpaceRemaining() int32 {
	return tp.getFreeSpacePointer() - tp.slotOffset(tp.GetTupleCount())
}

// InsertTuple. append tuple ke page. false kalau space nya gak cukup.
func (tp *TablePage) InsertTuple(data []byte) (types.SlotNum, bool) {
	needed := int32(len(data)) + slotSize
	if tp.freeSpaceRemaining() < needed {
		return 0, false
	}

	ptr := tp.getFreeSpacePointer() - int32(len(data))
	copy(tp.page.Contents()[ptr:], data)
	tp.setFreeSpacePointer(ptr)

	slot := tp.GetTupleCount()
	tp.page.PutInt(tp.slotOffset(slot), ptr)
	tp.page.PutUint32(tp.slotOffset(slot)+4, uint32(len(data)))
	tp.setTupleCount(slot + 1)

	return types.SlotNum(slot), true
}

// GetTuple. baca tuple di slot. false kalau slot invalid atau tuple nya deleted.
func (tp *TablePage) GetTuple(slot types.SlotNum) ([]byte, bool) {
	s := int(slot)
	if s >= tp.GetTupleCount() || tp.isDeleted(s) {
		return nil, false
	}

	off := tp.getTupleOffset(s)
	size := tp.getTupleSize(s)
	out := make([]byte, size)
	copy(out, tp.page.Contents()[off:off+int32(size)])
	return out, true
}

// MarkDelete. set delete bit di slot. false kalau slot invalid atau sudah deleted.
func (tp *TablePage) MarkDelete(slot types.SlotNum) bool {
	s := int(slot)
	if s >= tp.GetTupleCount() || tp.isDeleted(s) {
		return false
	}
	tp.page.PutUint32(tp.slotOffset(s)+4, tp.getTupleSize(s)|deleteMask)
	return true
}

// RollbackDelete. clear delete bit (dipakai abort path transaksi).
func (tp *TablePage) RollbackDelete(slot types.SlotNum) {
	s := int(slot)
	if s >= tp.GetTupleCount() {
		return
	}
	tp.page.PutUint32(tp.slotOffset(s)+4, tp.getTupleSize(s)&^deleteMask)
}
