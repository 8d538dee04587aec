package index

import (
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/types"
)

// HeaderPage. page id 0 reserved buat header page: mapping dari index name
// (short string, max 32 byte) ke root page id nya. record baru diappend di akhir;
// DeleteRecord mindahin record terakhir ke slot yang dihapus. root page id index berubah tiap root
// split/collapse, jadi harus diupdate di sini juga biar restart bisa nemuin root lagi.
//
// layout: | recordCount (4) | record 0 | record 1 | ... |
// record: | name (32, zero padded) | rootPageID (4) |
type HeaderPage struct {
	page *disk.Page
}

const (
	headerNameSize   = 32
	headerRecordSize = headerNameSize + 4
)

func NewHeaderPage(page *disk.Page) *HeaderPage {
	return &HeaderPage{page: page}
}

func (hp *HeaderPage) Init() {
	hp.setRecordCount(0)
}

func (hp *HeaderPage) GetRecordCount() int32 {
	return hp.page.GetInt(0)
}

func (hp *HeaderPage) setRecordCount(count int32) {
	hp.page.PutInt(0, count)
}

func (hp *HeaderPage) recordOffset(i int32) int32 {
	return 4 + i*headerRecordSize
}

func (hp *HeaderPage) nameAt(i int32) string {
	b := make([]byte, headerNameSize)
	copy(b, hp.page.Contents()[hp.recordOffset(i):hp.recordOffset(i)+headerNameSize])
	// nama dipad pakai zero byte
	end := 0
	for end < headerNameSize && b[end] != 0 {
		end++
	}
	return string(b[:end])
}

func (hp *HeaderPage) setNameAt(i int32, name string) {
	off := hp.recordOffset(i)
	b := hp.page.Contents()[off : off+headerNameSize]
	for j := range b {
		b[j] = 0
	}
	copy(b, name)
}

func (hp *HeaderPage) rootAt(i int32) types.PageID {
	return types.PageID(hp.page.GetInt(hp.recordOffset(i) + headerNameSize))
}

func (hp *HeaderPage) setRootAt(i int32, rootPageID types.PageID) {
	hp.page.PutInt(hp.recordOffset(i)+headerNameSize, int32(rootPageID))
}

func (hp *HeaderPage) findRecord(name string) int32 {
	for i := int32(0); i < hp.GetRecordCount(); i++ {
		if hp.nameAt(i) == name {
			return i
		}
	}
	return -1
}

// InsertRecord. tambah record (name, rootPageID) baru. false kalau nama kepanjangan,
// sudah ada, atau page penuh.
func (hp *HeaderPage) InsertRecord(name string, rootPageID types.PageID) bool {
	if len(name) > headerNameSize {
		return false
	}
	if hp.findRecord(name) != -1 {
		return false
	}

	count := hp.GetRecordCount()
	if int(hp.recordOffset(count))+headerRecordSize > len(hp.page.Contents()) {
		return false
	}

	hp.setNameAt(count, name)
	hp.setRootAt(count, rootPageID)
	hp.setRecordCount(count + 1)
	return true
}

// UpdateRecord. update root page id dari record dengan nama name.
func (hp *HeaderPage) UpdateRecord(name string, rootPageID types.PageID) bool {
	i := hp.findRecord(name)
	if i == -1 {
		return false
	}
	hp.setRootAt(i, rootPageID)
	return true
}

// GetRootId. return root page id dari index dengan nama name.
func (hp *HeaderPage) GetRootId(name string) (types.PageID, bool) {
	i := hp.findRecord(name)
	if i == -1 {
		return types.InvalidPageID, false
	}
	return hp.rootAt(i), true
}

// RecordAt. baca record ke-i (buat inspect).
func (hp *HeaderPage) RecordAt(i int32) (string, types.PageID) {
	return hp.nameAt(i), hp.rootAt(i)
}

// DeleteRecord. hapus record dengan nama name (record terakhir digeser ke slotnya).
func (hp *HeaderPage) DeleteRecord(name string) bool {
	i := hp.findRecord(name)
	if i == -1 {
		return false
	}

	last := hp.GetRecordCount() - 1
	if i != last {
		hp.setNameAt(i, hp.nameAt(last))
		hp.setRootAt(i, hp.rootAt(last))
	}
	hp.setRecordCount(last)
	return true
}
