package hash

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"

	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/lib/buffer"
	"github.com/lintang-b-s/lintangdb/lib/index"
	"github.com/lintang-b-s/lintangdb/types"
)

type BufferPoolManager interface {
	NewPage() (*buffer.Frame, error)
	FetchPage(pageID types.PageID) (*buffer.Frame, error)
	UnpinPage(pageID types.PageID, isDirty bool) bool
	DeletePage(pageID types.PageID) bool
	FlushPage(pageID types.PageID) bool
}

// HashFunc. hash function yang diinject (test pakai hash deterministik buat ngontrol
// slot mana yang ketrigger split).
type HashFunc func(key int64) uint32

// DefaultHashFunc. xxhash64 dari little-endian bytes key, dipotong 32 bit.
func DefaultHashFunc(key int64) uint32 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(key))
	return uint32(xxhash.Sum64(b[:]))
}

/*
ExtendibleHashTable. hash index persistent: satu directory page + bucket pages, semua
lewat buffer pool. insert ke bucket penuh displit (directory double kalau d_i == g),
remove yang ngosongin bucket dimerge ke image nya & directory dishrink kalau bisa.

tableLatch nge-guard struktur directory; tiap bucket page punya rwlatch sendiri.
directory page id dipersist di header page (page 0) under nama index.
*/
type ExtendibleHashTable struct {
	name            string
	bpm             BufferPoolManager
	hashFn          HashFunc
	bucketCapacity  int
	directoryPageID types.PageID

	tableLatch sync.RWMutex
	logger     *log.Logger
}

func NewExtendibleHashTable(name string, bpm BufferPoolManager, hashFn HashFunc,
	bucketCapacity int, logger *log.Logger) (*ExtendibleHashTable, error) {
	if hashFn == nil {
		hashFn = DefaultHashFunc
	}

	ht := &ExtendibleHashTable{
		name:           name,
		bpm:            bpm,
		hashFn:         hashFn,
		bucketCapacity: bucketCapacity,
		logger:         logger,
	}

	headerFrame, err := bpm.FetchPage(lib.HEADER_PAGE_ID)
	if err != nil {
		return nil, fmt.Errorf("fetch header page: %w", err)
	}
	header := index.NewHeaderPage(headerFrame.Contents())
	if dirPageID, ok := header.GetRootId(name); ok && dirPageID.IsValid() {
		ht.directoryPageID = dirPageID
		bpm.UnpinPage(lib.HEADER_PAGE_ID, false)
		return ht, nil
	}

	// table baru: alokasikan directory page + bucket pertama (slot 0, local depth 0).
	dirFrame, err := bpm.NewPage()
	if err != nil {
		bpm.UnpinPage(lib.HEADER_PAGE_ID, false)
		return nil, fmt.Errorf("hash table out of memory: %w", err)
	}
	bucketFrame, err := bpm.NewPage()
	if err != nil {
		bpm.UnpinPage(dirFrame.GetPageID(), false)
		bpm.UnpinPage(lib.HEADER_PAGE_ID, false)
		return nil, fmt.Errorf("hash table out of memory: %w", err)
	}

	dir := AsDirectoryPage(dirFrame.Contents())
	dir.Init(dirFrame.GetPageID())
	dir.SetBucketPageID(0, bucketFrame.GetPageID())
	dir.SetLocalDepth(0, 0)

	ht.directoryPageID = dirFrame.GetPageID()
	if !header.UpdateRecord(name, ht.directoryPageID) {
		header.InsertRecord(name, ht.directoryPageID)
	}

	bpm.UnpinPage(bucketFrame.GetPageID(), true)
	bpm.UnpinPage(dirFrame.GetPageID(), true)
	bpm.UnpinPage(lib.HEADER_PAGE_ID, true)
	return ht, nil
}

func (ht *ExtendibleHashTable) hash(key int64) uint32 {
	return ht.hashFn(key)
}

func (ht *ExtendibleHashTable) fetchDirectory() (*buffer.Frame, *DirectoryPage, error) {
	frame, err := ht.bpm.FetchPage(ht.directoryPageID)
	if err != nil {
		return nil, nil, err
	}
	return frame, AsDirectoryPage(frame.Contents()), nil
}

func (ht *ExtendibleHashTable) fetchBucket(pageID types.PageID) (*buffer.Frame, *BucketPage, error) {
	frame, err := ht.bpm.FetchPage(pageID)
	if err != nil {
		return nil, nil, err
	}
	return frame, AsBucketPage(frame.Contents(), ht.bucketCapacity), nil
}

// GetValue. semua rid yang kesimpan under key.
func (ht *ExtendibleHashTable) GetValue(key int64) ([]types.RID, error) {
	ht.tableLatch.RLock()
	defer ht.tableLatch.RUnlock()

	dirFrame, dir, err := ht.fetchDirectory()
	if err != nil {
		return nil, err
	}
	slot := ht.hash(key) & dir.GetGlobalDepthMask()
	bucketPageID := dir.GetBucketPageID(slot)

	bucketFrame, bucket, err := ht.fetchBucket(bucketPageID)
	if err != nil {
		ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
		return nil, err
	}

	bucketFrame.RLatch()
	result := bucket.GetValue(key)
	bucketFrame.RUnlatch()

	ht.bpm.UnpinPage(bucketFrame.GetPageID(), false)
	ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
	return result, nil
}

// Insert. insert (key, rid). false kalau pair duplicate atau bucket sudah gak bisa displit
// lagi (local depth mentok MAX_DEPTH). bucket penuh -> drop semua lock, split under write
// table latch, retry.
func (ht *ExtendibleHashTable) Insert(key int64, rid types.RID) (bool, error) {
	ht.tableLatch.RLock()

	dirFrame, dir, err := ht.fetchDirectory()
	if err != nil {
		ht.tableLatch.RUnlock()
		return false, err
	}
	slot := ht.hash(key) & dir.GetGlobalDepthMask()
	bucketPageID := dir.GetBucketPageID(slot)

	bucketFrame, bucket, err := ht.fetchBucket(bucketPageID)
	if err != nil {
		ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
		ht.tableLatch.RUnlock()
		return false, err
	}

	bucketFrame.WLatch()
	if !bucket.IsFull() {
		ok := bucket.Insert(key, rid)
		bucketFrame.WUnlatch()
		ht.bpm.UnpinPage(bucketFrame.GetPageID(), ok)
		ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
		ht.tableLatch.RUnlock()
		return ok, nil
	}

	// bucket penuh: drop semua lock & split under write table latch.
	bucketFrame.WUnlatch()
	ht.bpm.UnpinPage(bucketFrame.GetPageID(), false)
	ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
	ht.tableLatch.RUnlock()

	return ht.splitInsert(key, rid)
}

// splitInsert. split bucket target sampai insert nya muat (satu split bisa belum cukup
// kalau semua entry kehash ke sisi yang sama). directory didouble kalau local depth ==
// global depth.
func (ht *ExtendibleHashTable) splitInsert(key int64, rid types.RID) (bool, error) {
	ht.tableLatch.Lock()
	defer ht.tableLatch.Unlock()

	for {
		dirFrame, dir, err := ht.fetchDirectory()
		if err != nil {
			return false, err
		}

		slot := ht.hash(key) & dir.GetGlobalDepthMask()
		bucketPageID := dir.GetBucketPageID(slot)
		bucketFrame, bucket, err := ht.fetchBucket(bucketPageID)
		if err != nil {
			ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
			return false, err
		}

		bucketFrame.WLatch()
		if !bucket.IsFull() {
			// udah muat (kondisi bisa berubah sejak lock didrop di Insert)
			ok := bucket.Insert(key, rid)
			bucketFrame.WUnlatch()
			ht.bpm.UnpinPage(bucketFrame.GetPageID(), ok)
			ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
			return ok, nil
		}

		d := dir.GetLocalDepth(slot)
		if d >= MAX_DEPTH {
			// bucket gak bisa displit lagi
			bucketFrame.WUnlatch()
			ht.bpm.UnpinPage(bucketFrame.GetPageID(), false)
			ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
			return false, nil
		}

		if d == dir.GetGlobalDepth() {
			dir.IncrGlobalDepth()
			// slot direcompute karena mask nambah satu bit
			slot = ht.hash(key) & dir.GetGlobalDepthMask()
		}

		imageFrame, err := ht.bpm.NewPage()
		if err != nil {
			bucketFrame.WUnlatch()
			ht.bpm.UnpinPage(bucketFrame.GetPageID(), false)
			ht.bpm.UnpinPage(dirFrame.GetPageID(), true)
			return false, fmt.Errorf("hash table out of memory: %w", err)
		}
		image := AsBucketPage(imageFrame.Contents(), ht.bucketCapacity)
		newDepth := d + 1

		// semua slot yang nunjuk ke bucket lama dapet local depth baru; yang bit ke-d nya
		// beda dari slot target dipindah ke image bucket.
		for i := uint32(0); i < dir.Size(); i++ {
			if dir.GetBucketPageID(i) != bucketPageID {
				continue
			}
			dir.SetLocalDepth(i, newDepth)
			if (i>>d)&1 != (slot>>d)&1 {
				dir.SetBucketPageID(i, imageFrame.GetPageID())
			}
		}

		// rehash entry bucket lama ke dua bucket by low newDepth bits.
		newMask := uint32(1)<<newDepth - 1
		for i := 0; i < ht.bucketCapacity; i++ {
			if !bucket.IsReadable(i) {
				continue
			}
			k := bucket.KeyAt(i)
			if ht.hash(k)&newMask != slot&newMask {
				image.Insert(k, bucket.ValueAt(i))
				bucket.RemoveAt(i)
			}
		}

		ht.logger.WithFields(log.Fields{
			"bucket": bucketPageID,
			"image":  imageFrame.GetPageID(),
			"depth":  newDepth,
		}).Debug("split hash bucket")

		bucketFrame.WUnlatch()
		ht.bpm.UnpinPage(bucketFrame.GetPageID(), true)
		ht.bpm.UnpinPage(imageFrame.GetPageID(), true)
		ht.bpm.UnpinPage(dirFrame.GetPageID(), true)
		// retry dari atas, bisa jadi butuh split lagi
	}
}

// Remove. hapus pair (key, rid). bucket yang jadi kosong dicoba dimerge ke image nya.
func (ht *ExtendibleHashTable) Remove(key int64, rid types.RID) (bool, error) {
	ht.tableLatch.RLock()

	dirFrame, dir, err := ht.fetchDirectory()
	if err != nil {
		ht.tableLatch.RUnlock()
		return false, err
	}
	slot := ht.hash(key) & dir.GetGlobalDepthMask()
	bucketPageID := dir.GetBucketPageID(slot)

	bucketFrame, bucket, err := ht.fetchBucket(bucketPageID)
	if err != nil {
		ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
		ht.tableLatch.RUnlock()
		return false, err
	}

	bucketFrame.WLatch()
	removed := bucket.Remove(key, rid)
	empty := bucket.IsEmpty()
	bucketFrame.WUnlatch()

	ht.bpm.UnpinPage(bucketFrame.GetPageID(), removed)
	ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
	ht.tableLatch.RUnlock()

	if removed && empty {
		if err := ht.merge(key); err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// merge. gabungin bucket kosong ke split image nya. no-op kecuali semua kondisi hold:
// bucket masih kosong, local depth > 0, image slot punya local depth yang sama. setelah
// merge, directory dishrink selama semua local depth < global depth.
func (ht *ExtendibleHashTable) merge(key int64) error {
	ht.tableLatch.Lock()
	defer ht.tableLatch.Unlock()

	dirFrame, dir, err := ht.fetchDirectory()
	if err != nil {
		return err
	}

	slot := ht.hash(key) & dir.GetGlobalDepthMask()
	d := dir.GetLocalDepth(slot)
	if d == 0 {
		ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
		return nil
	}

	imageSlot := dir.GetSplitImageIndex(slot)
	if dir.GetLocalDepth(imageSlot) != d {
		ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
		return nil
	}

	bucketPageID := dir.GetBucketPageID(slot)
	imagePageID := dir.GetBucketPageID(imageSlot)

	// re-check masih kosong (lock sempet didrop di Remove)
	bucketFrame, bucket, err := ht.fetchBucket(bucketPageID)
	if err != nil {
		ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
		return err
	}
	empty := bucket.IsEmpty()
	ht.bpm.UnpinPage(bucketFrame.GetPageID(), false)
	if !empty {
		ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
		return nil
	}

	// slot yang nunjuk bucket kosong dipindah ke image, local depth dua-duanya turun.
	for i := uint32(0); i < dir.Size(); i++ {
		if dir.GetBucketPageID(i) == bucketPageID {
			dir.SetBucketPageID(i, imagePageID)
		}
	}
	for i := uint32(0); i < dir.Size(); i++ {
		if dir.GetBucketPageID(i) == imagePageID {
			dir.SetLocalDepth(i, d-1)
		}
	}

	ht.bpm.DeletePage(bucketPageID)

	for dir.CanShrink() {
		dir.DecrGlobalDepth()
	}

	ht.logger.WithFields(log.Fields{
		"bucket": bucketPageID,
		"image":  imagePageID,
	}).Debug("merge hash bucket")

	ht.bpm.UnpinPage(dirFrame.GetPageID(), true)
	return nil
}

// GetGlobalDepth. buat test & inspect.
func (ht *ExtendibleHashTable) GetGlobalDepth() uint32 {
	ht.tableLatch.RLock()
	defer ht.tableLatch.RUnlock()

	dirFrame, dir, err := ht.fetchDirectory()
	if err != nil {
		return 0
	}
	g := dir.GetGlobalDepth()
	ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
	return g
}

// VerifyIntegrity. assert invariant directory. dipakai test setelah serangkaian operasi
// (di test randomized: tiap 50 operasi & di akhir).
func (ht *ExtendibleHashTable) VerifyIntegrity() {
	ht.tableLatch.RLock()
	defer ht.tableLatch.RUnlock()

	dirFrame, dir, err := ht.fetchDirectory()
	if err != nil {
		return
	}
	dir.VerifyIntegrity()
	ht.bpm.UnpinPage(dirFrame.GetPageID(), false)
}
