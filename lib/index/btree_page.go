package index

import (
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/types"
)

type BTreePageType int32

const (
	INVALID_PAGE BTreePageType = iota
	INTERNAL_PAGE
	LEAF_PAGE
)

// KeyComparator. injected total order buat key. return <0 kalau a<b, 0 kalau sama, >0 kalau a>b.
type KeyComparator func(a, b int64) int

func IntegerComparator(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// common header dari semua btree page, overlay di atas byte buffer page:
//
//	| pageType (4) | size (4) | maxSize (4) | parentPageID (4) | pageID (4) | nextPageID (4, leaf only) |
//
// entries mulai dari offset 24.
const (
	offsetPageType   = 0
	offsetSize       = 4
	offsetMaxSize    = 8
	offsetParentID   = 12
	offsetPageID     = 16
	offsetNextPageID = 20

	btreePageHeaderSize = 24
)

// BTreePage. typed view (header only) di atas page buffer. baca pageType dulu sebelum
// interpretasi lebih lanjut (internal/leaf).
type BTreePage struct {
	page *disk.Page
}

func AsBTreePage(page *disk.Page) *BTreePage {
	return &BTreePage{page: page}
}

func (p *BTreePage) GetPageType() BTreePageType {
	return BTreePageType(p.page.GetInt(offsetPageType))
}

func (p *BTreePage) setPageType(t BTreePageType) {
	p.page.PutInt(offsetPageType, int32(t))
}

func (p *BTreePage) IsLeafPage() bool {
	return p.GetPageType() == LEAF_PAGE
}

func (p *BTreePage) IsRootPage() bool {
	return p.GetParentPageID() == types.InvalidPageID
}

func (p *BTreePage) GetSize() int {
	return int(p.page.GetInt(offsetSize))
}

func (p *BTreePage) SetSize(size int) {
	p.page.PutInt(offsetSize, int32(size))
}

func (p *BTreePage) IncreaseSize(amount int) {
	p.SetSize(p.GetSize() + amount)
}

func (p *BTreePage) GetMaxSize() int {
	return int(p.page.GetInt(offsetMaxSize))
}

func (p *BTreePage) setMaxSize(maxSize int) {
	p.page.PutInt(offsetMaxSize, int32(maxSize))
}

// GetMinSize. minimum occupancy dari non-root node. leaf: maxSize/2,
// internal: (maxSize+1)/2. dengan konvensi split di MoveHalfTo, fresh split leaf & internal
// dengan maxSize genap tidak menghasilkan sibling under-full; internal dengan maxSize ganjil
// (misal InternalPageCapacity(4096) = 339) ngasih sibling kanan maxSize/2 entry, satu di
// bawah GetMinSize.
func (p *BTreePage) GetMinSize() int {
	if p.IsLeafPage() {
		return p.GetMaxSize() / 2
	}
	return (p.GetMaxSize() + 1) / 2
}

func (p *BTreePage) GetParentPageID() types.PageID {
	return types.PageID(p.page.GetInt(offsetParentID))
}

func (p *BTreePage) SetParentPageID(parent types.PageID) {
	p.page.PutInt(offsetParentID, int32(parent))
}

func (p *BTreePage) GetPageID() types.PageID {
	return types.PageID(p.page.GetInt(offsetPageID))
}

func (p *BTreePage) setPageID(pageID types.PageID) {
	p.page.PutInt(offsetPageID, int32(pageID))
}
