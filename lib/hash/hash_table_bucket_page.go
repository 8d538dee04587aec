package hash

import (
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/types"
)

// BucketPage. bucket extendible hash. dua bitmap: occupied (slot pernah keisi, tombstone
// ikut kehitung) & readable (slot lagi keisi entry valid). entry (key, rid) tidak
// diduplikat di dalam satu bucket.
//
// layout: | occupied bitmap | readable bitmap | entries |, entry: | key (8) | ridPageID (4) | ridSlot (4) |
type BucketPage struct {
	page     *disk.Page
	capacity int
}

const bucketEntrySize = 16

// DefaultBucketCapacity. kapasitas maksimum yang muat di satu page.
func DefaultBucketCapacity(pageSize int) int {
	// per entry butuh 16 byte + 2 bit bitmap
	return (pageSize * 8) / (bucketEntrySize*8 + 2)
}

func AsBucketPage(page *disk.Page, capacity int) *BucketPage {
	return &BucketPage{page: page, capacity: capacity}
}

func (bp *BucketPage) bitmapBytes() int {
	return (bp.capacity + 7) / 8
}

func (bp *BucketPage) entryOffset(i int) int32 {
	return int32(2*bp.bitmapBytes() + i*bucketEntrySize)
}

func (bp *BucketPage) IsOccupied(i int) bool {
	return bp.page.Contents()[i/8]&(1<<(i%8)) != 0
}

func (bp *BucketPage) setOccupied(i int) {
	bp.page.Contents()[i/8] |= 1 << (i % 8)
}

func (bp *BucketPage) IsReadable(i int) bool {
	return bp.page.Contents()[bp.bitmapBytes()+i/8]&(1<<(i%8)) != 0
}

func (bp *BucketPage) setReadable(i int) {
	bp.page.Contents()[bp.bitmapBytes()+i/8] |= 1 << (i % 8)
}

func (bp *BucketPage) RemoveAt(i int) {
	bp.page.Contents()[bp.bitmapBytes()+i/8] &^= 1 << (i % 8)
}

func (bp *BucketPage) KeyAt(i int) int64 {
	return bp.page.GetInt64(bp.entryOffset(i))
}

func (bp *BucketPage) ValueAt(i int) types.RID {
	off := bp.entryOffset(i)
	return types.NewRID(types.PageID(bp.page.GetInt(off+8)), types.SlotNum(bp.page.GetUint32(off+12)))
}

func (bp *BucketPage) setEntryAt(i int, key int64, rid types.RID) {
	off := bp.entryOffset(i)
	bp.page.PutInt64(off, key)
	bp.page.PutInt(off+8, int32(rid.GetPageID()))
	bp.page.PutUint32(off+12, uint32(rid.GetSlot()))
}

// GetValue. semua rid yang kesimpan under key.
func (bp *BucketPage) GetValue(key int64) []types.RID {
	var result []types.RID
	for i := 0; i < bp.capacity; i++ {
		if bp.IsReadable(i) && bp.KeyAt(i) == key {
			result = append(result, bp.ValueAt(i))
		}
	}
	return result
}

// Insert. insert (key, rid) ke slot kosong pertama. false kalau pair nya duplicate atau
// bucket penuh.
func (bp *BucketPage) Insert(key int64, rid types.RID) bool {
	for i := 0; i < bp.capacity; i++ {
		if bp.IsReadable(i) && bp.KeyAt(i) == key && bp.ValueAt(i) == rid {
			return false
		}
	}
	for i := 0; i < bp.capacity; i++ {
		if !bp.IsReadable(i) {
			bp.setOccupied(i)
			bp.setReadable(i)
			bp.setEntryAt(i, key, rid)
			return true
		}
	}
	return false
}

// Remove. hapus pair (key, rid). false kalau tidak ada.
func (bp *BucketPage) Remove(key int64, rid types.RID) bool {
	for i := 0; i < bp.capacity; i++ {
		if bp.IsReadable(i) && bp.KeyAt(i) == key && bp.ValueAt(i) == rid {
			bp.RemoveAt(i)
			return true
		}
	}
	return false
}

func (bp *BucketPage) NumReadable() int {
	n := 0
	for i := 0; i < bp.capacity; i++ {
		if bp.IsReadable(i) {
			n++
		}
	}
	return n
}

func (bp *BucketPage) IsFull() bool {
	return bp.NumReadable() == bp.capacity
}

func (bp *BucketPage) IsEmpty() bool {
	return bp.NumReadable() == 0
}
