package index

import (
	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/types"
)

// InternalPage. internal node dari btree: (key_i, childPageID_i) pairs dengan key_0 dummy
// (separator convention: child_i nyimpan key k dengan key_i <= k < key_i+1).
//
// entry layout (mulai offset 24): | key (8) | childPageID (4) | per entry.
type InternalPage struct {
	BTreePage
}

const internalEntrySize = 12

// InternalPageCapacity. jumlah maksimum entry yang muat di satu internal page.
func InternalPageCapacity(pageSize int) int {
	return (pageSize - btreePageHeaderSize) / internalEntrySize
}

func AsInternalPage(page *disk.Page) *InternalPage {
	return &InternalPage{BTreePage{page: page}}
}

func (p *InternalPage) Init(pageID, parentID types.PageID, maxSize int) {
	lib.Assert(maxSize <= InternalPageCapacity(len(p.page.Contents())),
		"internal max size %d exceeds page capacity", maxSize)
	p.setPageType(INTERNAL_PAGE)
	p.SetSize(0)
	p.setMaxSize(maxSize)
	p.SetParentPageID(parentID)
	p.setPageID(pageID)
}

func (p *InternalPage) entryOffset(i int) int32 {
	return btreePageHeaderSize + int32(i)*internalEntrySize
}

func (p *InternalPage) KeyAt(i int) int64 {
	return p.page.GetInt64(p.entryOffset(i))
}

func (p *InternalPage) SetKeyAt(i int, key int64) {
	p.page.PutInt64(p.entryOffset(i), key)
}

func (p *InternalPage) ValueAt(i int) types.PageID {
	return types.PageID(p.page.GetInt(p.entryOffset(i) + 8))
}

func (p *InternalPage) setValueAt(i int, child types.PageID) {
	p.page.PutInt(p.entryOffset(i)+8, int32(child))
}

func (p *InternalPage) setEntryAt(i int, key int64, child types.PageID) {
	p.SetKeyAt(i, key)
	p.setValueAt(i, child)
}

// ValueIndex. index dari child dengan page id = child. -1 kalau tidak ada.
func (p *InternalPage) ValueIndex(child types.PageID) int {
	for i := 0; i < p.GetSize(); i++ {
		if p.ValueAt(i) == child {
			return i
		}
	}
	return -1
}

// Lookup. child page id yang harus didescend buat key: child terakhir dengan
// key_i <= key (key_0 diskip karena dummy).
func (p *InternalPage) Lookup(key int64, cmp KeyComparator) types.PageID {
	// binary search last index dengan KeyAt(index) <= key, index >= 1
	lo, hi := 1, p.GetSize()
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(p.KeyAt(mid), key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return p.ValueAt(lo - 1)
}

// PopulateNewRoot. isi root internal baru hasil split root lama: child_0 = old,
// (key, new) di index 1.
func (p *InternalPage) PopulateNewRoot(oldChild types.PageID, key int64, newChild types.PageID) {
	p.setEntryAt(0, 0, oldChild)
	p.setEntryAt(1, key, newChild)
	p.SetSize(2)
}

// InsertNodeAfter. sisipkan (key, newChild) tepat setelah entry dengan child = oldChild.
// return size setelah insert.
func (p *InternalPage) InsertNodeAfter(oldChild types.PageID, key int64, newChild types.PageID) int {
	idx := p.ValueIndex(oldChild)
	lib.Assert(idx != -1, "internal page %d has no child %d", p.GetPageID(), oldChild)

	size := p.GetSize()
	for j := size; j > idx+1; j-- {
		p.setEntryAt(j, p.KeyAt(j-1), p.ValueAt(j-1))
	}
	p.setEntryAt(idx+1, key, newChild)
	p.IncreaseSize(1)
	return size + 1
}

// Remove. hapus entry di index.
func (p *InternalPage) Remove(index int) {
	size := p.GetSize()
	for j := index; j < size-1; j++ {
		p.setEntryAt(j, p.KeyAt(j+1), p.ValueAt(j+1))
	}
	p.IncreaseSize(-1)
}

// RemoveAndReturnOnlyChild. buat AdjustRoot: root internal tinggal satu child, child itu
// dipromote jadi root baru.
func (p *InternalPage) RemoveAndReturnOnlyChild() types.PageID {
	child := p.ValueAt(0)
	p.SetSize(0)
	return child
}

// childUpdater. rewrite parent pointer dari child yang pindah node. dipakai split/merge
// internal (children yang pindah harus tahu parent barunya).
type childUpdater func(child types.PageID, newParent types.PageID)

// MoveHalfTo. split: pindahin entries [minSize, size) ke recipient & rewrite parent id
// semua child yang pindah.
func (p *InternalPage) MoveHalfTo(recipient *InternalPage, updateChild childUpdater) {
	size := p.GetSize()
	splitAt := p.GetMinSize()

	for i := splitAt; i < size; i++ {
		recipient.setEntryAt(i-splitAt, p.KeyAt(i), p.ValueAt(i))
		updateChild(p.ValueAt(i), recipient.GetPageID())
	}
	recipient.SetSize(size - splitAt)
	p.SetSize(splitAt)
}

// MoveAllTo. merge: pindahin semua entries ke akhir recipient (sibling kiri). middleKey =
// separator dari parent, jadi key_0 node ini yang tadinya dummy.
func (p *InternalPage) MoveAllTo(recipient *InternalPage, middleKey int64, updateChild childUpdater) {
	rsize := recipient.GetSize()
	size := p.GetSize()

	recipient.setEntryAt(rsize, middleKey, p.ValueAt(0))
	updateChild(p.ValueAt(0), recipient.GetPageID())
	for i := 1; i < size; i++ {
		recipient.setEntryAt(rsize+i, p.KeyAt(i), p.ValueAt(i))
		updateChild(p.ValueAt(i), recipient.GetPageID())
	}
	recipient.SetSize(rsize + size)
	p.SetSize(0)
}

// MoveFirstToEndOf. redistribute: entry pertama node ini pindah ke akhir recipient
// (sibling kiri). middleKey = separator lama dari parent.
func (p *InternalPage) MoveFirstToEndOf(recipient *InternalPage, middleKey int64, updateChild childUpdater) {
	child := p.ValueAt(0)
	rsize := recipient.GetSize()
	recipient.setEntryAt(rsize, middleKey, child)
	recipient.IncreaseSize(1)
	updateChild(child, recipient.GetPageID())

	size := p.GetSize()
	for j := 0; j < size-1; j++ {
		p.setEntryAt(j, p.KeyAt(j+1), p.ValueAt(j+1))
	}
	p.IncreaseSize(-1)
}

// MoveLastToFrontOf. redistribute: entry terakhir node ini pindah ke depan recipient
// (sibling kanan). middleKey = separator lama dari parent, jadi key di index 1 recipient.
func (p *InternalPage) MoveLastToFrontOf(recipient *InternalPage, middleKey int64, updateChild childUpdater) {
	size := p.GetSize()
	key, child := p.KeyAt(size-1), p.ValueAt(size-1)
	p.IncreaseSize(-1)

	rsize := recipient.GetSize()
	for j := rsize; j > 0; j-- {
		recipient.setEntryAt(j, recipient.KeyAt(j-1), recipient.ValueAt(j-1))
	}
	// key di index 0 dummy, tapi key yang dipindah tetap ditulis ke sana biar caller bisa
	// baca buat separator baru di parent. separator lama turun ke index 1.
	recipient.setEntryAt(0, key, child)
	recipient.SetKeyAt(1, middleKey)
	recipient.IncreaseSize(1)
	updateChild(child, recipient.GetPageID())
}
