package index

import (
	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/types"
)

// LeafPage. leaf node dari btree: sorted (key, rid) pairs + next pointer ke leaf kanan.
// semua leaf membentuk singly linked list kiri-ke-kanan, dipakai range scan.
//
// entry layout (mulai offset 24): | key (8) | ridPageID (4) | ridSlot (4) | per entry.
type LeafPage struct {
	BTreePage
}

const leafEntrySize = 16

// LeafPageCapacity. jumlah maksimum entry yang muat di satu leaf page.
func LeafPageCapacity(pageSize int) int {
	return (pageSize - btreePageHeaderSize) / leafEntrySize
}

func AsLeafPage(page *disk.Page) *LeafPage {
	return &LeafPage{BTreePage{page: page}}
}

func (p *LeafPage) Init(pageID, parentID types.PageID, maxSize int) {
	lib.Assert(maxSize <= LeafPageCapacity(len(p.page.Contents())),
		"leaf max size %d exceeds page capacity", maxSize)
	p.setPageType(LEAF_PAGE)
	p.SetSize(0)
	p.setMaxSize(maxSize)
	p.SetParentPageID(parentID)
	p.setPageID(pageID)
	p.SetNextPageID(types.InvalidPageID)
}

func (p *LeafPage) GetNextPageID() types.PageID {
	return types.PageID(p.page.GetInt(offsetNextPageID))
}

func (p *LeafPage) SetNextPageID(next types.PageID) {
	p.page.PutInt(offsetNextPageID, int32(next))
}

func (p *LeafPage) entryOffset(i int) int32 {
	return btreePageHeaderSize + int32(i)*leafEntrySize
}

func (p *LeafPage) KeyAt(i int) int64 {
	return p.page.GetInt64(p.entryOffset(i))
}

func (p *LeafPage) setKeyAt(i int, key int64) {
	p.page.PutInt64(p.entryOffset(i), key)
}

func (p *LeafPage) ValueAt(i int) types.RID {
	off := p.entryOffset(i)
	return types.NewRID(types.PageID(p.page.GetInt(off+8)), types.SlotNum(p.page.GetUint32(off+12)))
}

func (p *LeafPage) setValueAt(i int, rid types.RID) {
	off := p.entryOffset(i)
	p.page.PutInt(off+8, int32(rid.GetPageID()))
	p.page.PutUint32(off+12, uint32(rid.GetSlot()))
}

func (p *LeafPage) setEntryAt(i int, key int64, rid types.RID) {
	p.setKeyAt(i, key)
	p.setValueAt(i, rid)
}

// KeyIndex. index dari entry pertama dengan key >= target (binary search).
// return size kalau semua key < target.
func (p *LeafPage) KeyIndex(key int64, cmp KeyComparator) int {
	lo, hi := 0, p.GetSize()
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(p.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup. point lookup key di leaf.
func (p *LeafPage) Lookup(key int64, cmp KeyComparator) (types.RID, bool) {
	i := p.KeyIndex(key, cmp)
	if i < p.GetSize() && cmp(p.KeyAt(i), key) == 0 {
		return p.ValueAt(i), true
	}
	return types.RID{}, false
}

// Insert. sisipkan (key, rid) pada posisi sorted. kalau key sudah ada, leaf tidak berubah
// (return size lama). return size setelah insert.
func (p *LeafPage) Insert(key int64, rid types.RID, cmp KeyComparator) int {
	size := p.GetSize()
	i := p.KeyIndex(key, cmp)
	if i < size && cmp(p.KeyAt(i), key) == 0 {
		// duplicate key, jangan mutate
		return size
	}

	// geser entries [i, size) ke kanan satu slot
	for j := size; j > i; j-- {
		p.setEntryAt(j, p.KeyAt(j-1), p.ValueAt(j-1))
	}
	p.setEntryAt(i, key, rid)
	p.IncreaseSize(1)
	return size + 1
}

// RemoveAndDeleteRecord. hapus key dari leaf kalau ada. return size setelahnya
// (size tidak berubah kalau key tidak ada).
func (p *LeafPage) RemoveAndDeleteRecord(key int64, cmp KeyComparator) int {
	size := p.GetSize()
	i := p.KeyIndex(key, cmp)
	if i >= size || cmp(p.KeyAt(i), key) != 0 {
		return size
	}

	for j := i; j < size-1; j++ {
		p.setEntryAt(j, p.KeyAt(j+1), p.ValueAt(j+1))
	}
	p.IncreaseSize(-1)
	return size - 1
}

// MoveHalfTo. split: pindahin entries [minSize, size) ke recipient (sibling kanan yang
// baru). yang kiri keep minSize entries pertama.
func (p *LeafPage) MoveHalfTo(recipient *LeafPage) {
	size := p.GetSize()
	splitAt := p.GetMinSize()

	for i := splitAt; i < size; i++ {
		recipient.setEntryAt(i-splitAt, p.KeyAt(i), p.ValueAt(i))
	}
	recipient.SetSize(size - splitAt)
	p.SetSize(splitAt)
}

// MoveAllTo. merge: pindahin semua entries ke akhir recipient (sibling kiri) & sambungin
// next pointer recipient ke next nya leaf ini.
func (p *LeafPage) MoveAllTo(recipient *LeafPage) {
	rsize := recipient.GetSize()
	size := p.GetSize()
	for i := 0; i < size; i++ {
		recipient.setEntryAt(rsize+i, p.KeyAt(i), p.ValueAt(i))
	}
	recipient.SetSize(rsize + size)
	recipient.SetNextPageID(p.GetNextPageID())
	p.SetSize(0)
}

// MoveFirstToEndOf. redistribute: entry pertama leaf ini pindah ke akhir recipient
// (sibling kiri).
func (p *LeafPage) MoveFirstToEndOf(recipient *LeafPage) {
	key, rid := p.KeyAt(0), p.ValueAt(0)

	size := p.GetSize()
	for j := 0; j < size-1; j++ {
		p.setEntryAt(j, p.KeyAt(j+1), p.ValueAt(j+1))
	}
	p.IncreaseSize(-1)

	recipient.setEntryAt(recipient.GetSize(), key, rid)
	recipient.IncreaseSize(1)
}

// MoveLastToFrontOf. redistribute: entry terakhir leaf ini pindah ke depan recipient
// (sibling kanan).
func (p *LeafPage) MoveLastToFrontOf(recipient *LeafPage) {
	size := p.GetSize()
	key, rid := p.KeyAt(size-1), p.ValueAt(size-1)
	p.IncreaseSize(-1)

	rsize := recipient.GetSize()
	for j := rsize; j > 0; j-- {
		recipient.setEntryAt(j, recipient.KeyAt(j-1), recipient.ValueAt(j-1))
	}
	recipient.setEntryAt(0, key, rid)
	recipient.IncreaseSize(1)
}
