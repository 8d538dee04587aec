package buffer

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/lintang-b-s/lintangdb/lib/concurrent"
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/types"
)

// https://15445.courses.cs.cmu.edu/spring2023/slides/06-bufferpool.pdf

var ErrNoFreeFrame = errors.New("no available frame, all pages are pinned")

type DiskManager interface {
	ReadPage(pageID types.PageID, page *disk.Page) error
	WritePage(pageID types.PageID, page *disk.Page) error
	AllocatePage() types.PageID
	DeallocatePage(pageID types.PageID)
	PageSize() int
}

type LogManager interface {
	Flush(lsn types.LSN) error
	Flush2() error
}

// BufferPoolManager. nyimpan working set page dari disk di memori (array frame berukuran
// poolSize). semua akses page lewat pageTable (page id -> frame id). frame yang pin nya 0
// dijadwalkan buat dievict lewat LRU replacer.
type BufferPoolManager struct {
	pool        []*Frame
	poolSize    int
	pageTable   map[types.PageID]types.FrameID // mapping antara page id dengan frameID/index frame. {pageID: frameID}
	freeList    []types.FrameID                // list frame yang tidak hold any page data.
	replacer    *LRUReplacer                   // LRU replacer buat evict least recently unpinned page dari buffer pool.
	diskManager DiskManager
	logManager  LogManager

	// buat parallel buffer pool: instance ke-i cuma ngalokasiin page id
	// dengan pid mod numInstances == instanceIndex.
	numInstances  int
	instanceIndex int
	nextPageID    types.PageID

	workerQueue concurrent.WorkQueue
	latch       sync.Mutex
	logger      *log.Logger
}

// NewBufferPoolManager. initialize buffer pool manager single instance.
func NewBufferPoolManager(poolSize int, diskManager DiskManager, logManager LogManager,
	logger *log.Logger) *BufferPoolManager {
	return NewBufferPoolManagerInstance(poolSize, 1, 0, diskManager, logManager, logger)
}

// NewBufferPoolManagerInstance. initialize satu instance dari parallel buffer pool.
func NewBufferPoolManagerInstance(poolSize, numInstances, instanceIndex int,
	diskManager DiskManager, logManager LogManager, logger *log.Logger) *BufferPoolManager {
	pool := make([]*Frame, poolSize)
	for i := 0; i < poolSize; i++ {
		pool[i] = NewFrame(diskManager.PageSize())
	}

	fl := make([]types.FrameID, poolSize)
	for i := 0; i < poolSize; i++ {
		fl[i] = types.FrameID(i)
	}

	backgroundFlusher := concurrent.NewWorkerQueue(1)

	// page 0 reserved buat header page; instance yang residunya 0 mulai dari
	// numInstances biar gak ngalokasiin page 0.
	nextPageID := types.PageID(instanceIndex)
	if instanceIndex == 0 {
		nextPageID = types.PageID(numInstances)
	}

	return &BufferPoolManager{
		pool:          pool,
		poolSize:      poolSize,
		pageTable:     make(map[types.PageID]types.FrameID),
		freeList:      fl,
		replacer:      NewLRUReplacer(poolSize),
		diskManager:   diskManager,
		logManager:    logManager,
		numInstances:  numInstances,
		instanceIndex: instanceIndex,
		nextPageID:    nextPageID,
		workerQueue:   backgroundFlusher,
		logger:        logger,
	}
}

func (bpm *BufferPoolManager) GetPoolSize() int {
	return bpm.poolSize
}

func (bpm *BufferPoolManager) Close() {
	close(bpm.workerQueue)
}

// allocatePage. page id baru buat NewPage. single instance ambil dari disk manager
// (freelist + monoton), instance dari parallel pool increment counter sendiri biar
// pid mod numInstances == instanceIndex (routing nya invertible).
func (bpm *BufferPoolManager) allocatePage() types.PageID {
	if bpm.numInstances == 1 {
		return bpm.diskManager.AllocatePage()
	}
	pageID := bpm.nextPageID
	bpm.nextPageID += types.PageID(bpm.numInstances)
	return pageID
}

// getFrame. ambil frame dari freeList dulu, kalau kosong evict victim dari LRU replacer.
// victim yang dirty diwrite back ke disk dulu sebelum framenya direuse. caller harus
// sudah hold bpm.latch.
func (bpm *BufferPoolManager) getFrame() (types.FrameID, error) {
	var frameID types.FrameID

	if len(bpm.freeList) != 0 {
		frameID = bpm.freeList[0]
		bpm.freeList = bpm.freeList[1:]
		return frameID, nil
	}

	if !bpm.replacer.Victim(&frameID) {
		// semua frame pinned/used oleh thread lain
		bpm.logger.Warn("buffer pool exhausted, all frames pinned")
		return 0, ErrNoFreeFrame
	}

	victim := bpm.pool[frameID]
	if victim.IsDirty() && victim.GetPageID().IsValid() {
		// kalau page yang dievict dirty (habis diupdate), flush log record dulu baru
		// page nya diwrite back (WAL rule).
		if bpm.logManager != nil {
			bpm.logManager.Flush2()
		}
		if err := bpm.diskManager.WritePage(victim.GetPageID(), victim.Contents()); err != nil {
			return 0, err
		}
		victim.setDirty(false)
	}

	delete(bpm.pageTable, victim.GetPageID())
	return frameID, nil
}

/*
NewPage. Allocates a new page on disk & put frame buat page baru tsb ke buffer pool.
frame diambil dari freelist or dari evict least recently unpinned page. page baru di
zero, pin = 1, belum dirty. return ErrNoFreeFrame cuma kalau semua frame pinned.
*/
func (bpm *BufferPoolManager) NewPage() (*Frame, error) {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	frameID, err := bpm.getFrame()
	if err != nil {
		return nil, err
	}

	pageID := bpm.allocatePage()

	frame := bpm.pool[frameID]
	frame.resetMetadata()
	frame.pageID = pageID
	frame.incrementPin() // increment pin jadi 1

	bpm.pageTable[pageID] = frameID
	bpm.replacer.Pin(frameID) // remove from LRU, biar gak dievict dari buffer pool

	bpm.logger.WithFields(log.Fields{"pageID": pageID, "frameID": frameID}).Debug("new page")
	return frame, nil
}

/*
FetchPage. fetch page dengan page id dari buffer pool. kalau page tidak ada di buffer pool,
read dari disk & put page di buffer pool (frame dari freelist or evict victim dari LRU).
*/
func (bpm *BufferPoolManager) FetchPage(pageID types.PageID) (*Frame, error) {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	if frameID, ok := bpm.pageTable[pageID]; ok {
		// kalau page sudah ada di buffer pool
		frame := bpm.pool[frameID]

		frame.incrementPin()      // increment pin, biar thread lain tahu kalo frame ini lagi dipake
		bpm.replacer.Pin(frameID) // remove from LRU, biar gak dievict dari buffer pool

		return frame, nil
	}

	frameID, err := bpm.getFrame()
	if err != nil {
		return nil, err
	}

	frame := bpm.pool[frameID]
	frame.resetMetadata()
	frame.pageID = pageID

	err = bpm.diskManager.ReadPage(pageID, frame.Contents())
	if err != nil {
		if !errors.Is(err, disk.ErrReadOutOfRange) {
			// balikin frame ke freelist, fetch gagal
			frame.resetMetadata()
			bpm.freeList = append(bpm.freeList, frameID)
			return nil, err
		}
		// page belum pernah diwrite ke disk (baru dialokasikan & belum pernah diflush),
		// kontennya page kosong.
		frame.Contents().Reset()
	}

	frame.incrementPin()
	bpm.pageTable[pageID] = frameID
	bpm.replacer.Pin(frameID)

	return frame, nil
}

// UnpinPage. unpin page dengan pageID. tiap Fetch/New harus dibalas tepat satu Unpin,
// pin count itu refcount discipline nya buffer pool. page yang pin nya sampai 0 masuk
// LRU replacer (kandidat eviction).
func (bpm *BufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) bool {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		// not in buffer pool
		return false
	}

	frame := bpm.pool[frameID]

	if isDirty {
		frame.setDirty(true)
	}

	if frame.GetPinCount() <= 0 {
		// already unpinned
		return false
	}

	frame.decrementPin()

	if frame.GetPinCount() == 0 {
		// kalau pinCount = 0, unpin di replacer
		bpm.replacer.Unpin(frameID)
	}

	return true
}

// FlushPage. write page ke disk & clear dirty flag. pin count diignore.
func (bpm *BufferPoolManager) FlushPage(pageID types.PageID) bool {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	return bpm.flushPage(pageID)
}

func (bpm *BufferPoolManager) flushPage(pageID types.PageID) bool {
	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		return false
	}

	frame := bpm.pool[frameID]
	if bpm.logManager != nil {
		bpm.logManager.Flush2()
	}
	if err := bpm.diskManager.WritePage(pageID, frame.Contents()); err != nil {
		bpm.logger.WithFields(log.Fields{"pageID": pageID}).Errorf("flush page: %v", err)
		return false
	}
	frame.setDirty(false)
	return true
}

// FlushAll. flush semua page yang resident di buffer pool ke disk.
func (bpm *BufferPoolManager) FlushAll() {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	for pageID := range bpm.pageTable {
		bpm.flushPage(pageID)
	}
}

// FlushAllAsync. jadwalkan FlushAll di background worker. dipakai checkpoint-style flush
// dari cmd & bench biar gak blocking caller.
func (bpm *BufferPoolManager) FlushAllAsync() {
	bpm.workerQueue <- func() {
		bpm.FlushAll()
	}
}

// DeletePage. Removes a page from the database, both on disk and in memory.
// gagal (return false) kalau page masih dipin.
func (bpm *BufferPoolManager) DeletePage(pageID types.PageID) bool {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		// page tidak ada di buffer pool, deallocate aja
		bpm.diskManager.DeallocatePage(pageID)
		return true
	}

	frame := bpm.pool[frameID]
	if frame.isPinned() {
		// page masih dipin
		return false
	}

	if frame.IsDirty() {
		bpm.diskManager.WritePage(pageID, frame.Contents())
	}

	delete(bpm.pageTable, pageID)
	bpm.replacer.Pin(frameID) // remove dari LRU
	frame.resetMetadata()

	bpm.freeList = append(bpm.freeList, frameID)
	bpm.diskManager.DeallocatePage(pageID)
	return true
}

// GetPinCount. pin count dari page kalau resident. buat test & inspect.
func (bpm *BufferPoolManager) GetPinCount(pageID types.PageID) (int, bool) {
	bpm.latch.Lock()
	defer bpm.latch.Unlock()

	frameID, ok := bpm.pageTable[pageID]
	if !ok {
		return 0, false
	}
	return bpm.pool[frameID].GetPinCount(), true
}
