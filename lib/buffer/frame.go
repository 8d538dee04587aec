package buffer

import (
	"sync"

	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/types"
)

// Frame . satu slot di buffer pool yang menyimpan page dari disk sampai frame dievict atau
// page nya didelete; selama pinned (pins > 0) frame tidak bisa dievict. tiap frame punya reader/writer latch sendiri yang dipakai index
// (latch crabbing) & table heap.
type Frame struct {
	contents *disk.Page   // page yang disimpan di frame.
	pageID   types.PageID // page id dari page yang lagi resident. (buat nentuin offset pas write ke file)
	pins     int
	isDirty  bool // dirty flag buat nandain kalo page diupdate (isDirty = true -> harus diwrite ke disk sebelum frame direuse)

	rwlatch sync.RWMutex
}

func NewFrame(pageSize int) *Frame {
	return &Frame{
		contents: disk.NewPage(pageSize),
		pageID:   types.InvalidPageID,
		pins:     0,
	}
}

// Contents. return page contents dari frame.
func (f *Frame) Contents() *disk.Page {
	return f.contents
}

func (f *Frame) GetPageID() types.PageID {
	return f.pageID
}

func (f *Frame) isPinned() bool {
	return f.pins > 0
}

// GetPinCount. return pin count.
func (f *Frame) GetPinCount() int {
	return f.pins
}

func (f *Frame) incrementPin() {
	f.pins++
}

func (f *Frame) decrementPin() {
	f.pins--
}

func (f *Frame) setDirty(isDirty bool) {
	f.isDirty = isDirty
}

func (f *Frame) IsDirty() bool {
	return f.isDirty
}

// resetMetadata. reset frame jadi kosong (invalid page id, pin 0, not dirty) & zero contents.
func (f *Frame) resetMetadata() {
	f.pageID = types.InvalidPageID
	f.pins = 0
	f.isDirty = false
	f.contents.Reset()
}

// RLatch / WLatch. page-level reader/writer latch. dipegang caller selama baca/tulis byte
// page, distinct dari transactional lock di lock manager.
func (f *Frame) RLatch() {
	f.rwlatch.RLock()
}

func (f *Frame) RUnlatch() {
	f.rwlatch.RUnlock()
}

func (f *Frame) WLatch() {
	f.rwlatch.Lock()
}

func (f *Frame) WUnlatch() {
	f.rwlatch.Unlock()
}
