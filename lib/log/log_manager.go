package log

import (
	"sync"

	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/types"
)

type DiskManager interface {
	ReadPage(pageID types.PageID, page *disk.Page) error
	WritePage(pageID types.PageID, page *disk.Page) error
	PageSize() int
	NumPages() (int, error)
}

// LogManager. buat write & read log records ke log file. log record dibuffer di satu
// log page di memori & diflush by LSN watermark. tidak ada replay/recovery, cuma
// append + iterate.
type LogManager struct {
	diskManager   DiskManager
	logPage       *disk.Page
	currentPageID types.PageID // page id dari log page yang lagi diisi
	latestLSN     types.LSN    // log sequence number : log record identifier. LSN terakhir di memori
	lastSavedLSN  types.LSN    // LSN terakhir yang sudah diwrite ke disk
	latch         sync.Mutex
}

func NewLogManager(diskManager DiskManager) (*LogManager, error) {
	b := make([]byte, diskManager.PageSize())
	logPage := disk.NewPageFromByteSlice(b)

	logSize, err := diskManager.NumPages() // get jumlah page pada log file
	if err != nil {
		return nil, err
	}

	lm := &LogManager{
		diskManager:   diskManager,
		logPage:       logPage,
		currentPageID: 0,
		latestLSN:     0,
		lastSavedLSN:  0,
	}

	if logSize == 0 {
		// log file kosong, tambahkan page baru
		lm.currentPageID, err = lm.appendNewPage()
		if err != nil {
			return nil, err
		}
	} else {
		// read page terakhir dari disk
		lm.currentPageID = types.PageID(logSize - 1)
		err = diskManager.ReadPage(lm.currentPageID, logPage)
		if err != nil {
			return nil, err
		}
	}

	return lm, nil
}

// Flush. flush logPage ke disk kalau lsn belum kesave.
func (lm *LogManager) Flush(lsn types.LSN) error {
	lm.latch.Lock()
	defer lm.latch.Unlock()

	if lsn > lm.lastSavedLSN {
		return lm.flush()
	}
	return nil
}

// Flush2. flush logPage ke disk, write offset pada file == currentPageID*pageSize.
func (lm *LogManager) Flush2() error {
	lm.latch.Lock()
	defer lm.latch.Unlock()

	return lm.flush()
}

func (lm *LogManager) flush() error {
	err := lm.diskManager.WritePage(lm.currentPageID, lm.logPage)
	if err != nil {
		return err
	}
	lm.lastSavedLSN = lm.latestLSN // update lastSavedLSN
	return nil
}

// appendNewPage. menambahkan page baru kosong ke log file & write logPage ke disk di
// offset page yang baru.
func (lm *LogManager) appendNewPage() (types.PageID, error) {
	numPages, err := lm.diskManager.NumPages()
	if err != nil {
		return types.InvalidPageID, err
	}
	pageID := types.PageID(numPages)

	lm.logPage.Reset()
	lm.logPage.PutInt(0, int32(lm.diskManager.PageSize())) // set boundary record position pada logPage
	err = lm.diskManager.WritePage(pageID, lm.logPage)
	if err != nil {
		return types.InvalidPageID, err
	}
	return pageID, nil
}

func (lm *LogManager) GetIterator() (*LogIterator, error) {
	lm.Flush2()

	lm.latch.Lock()
	defer lm.latch.Unlock()
	return NewLogIterator(lm.diskManager, lm.currentPageID)
}

/*
Append. append log record ke log buffer. log record ditulis dari kanan ke kiri pada log
page. pada awal page terdapat lokasi record yang ditulis paling terakhir, sehingga iterate
log record per page nya dari kiri ke kanan = urutan dari log terakhir ditambahkan ke yang
terdahulu.
*/
func (lm *LogManager) Append(logRecord []byte) (types.LSN, error) {
	lm.latch.Lock()
	defer lm.latch.Unlock()

	boundary := lm.logPage.GetInt(0) // posisi record paling akhir di logPage
	recordSize := len(logRecord)
	bytesNeeded := int32(recordSize + 4) // + 4 bytes untuk menyimpan recordSize
	var err error
	if boundary-bytesNeeded < 4 {
		// record gak muat di page ini, flush page sekarang & pindah ke page baru.
		if err = lm.flush(); err != nil {
			return 0, err
		}
		lm.currentPageID, err = lm.appendNewPage()
		if err != nil {
			return 0, err
		}
		boundary = lm.logPage.GetInt(0)
	}

	recordPosition := boundary - bytesNeeded

	lm.logPage.PutBytes(recordPosition, logRecord) // write logRecord ke logPage pada offset recordPosition
	lm.logPage.PutInt(0, recordPosition)           // update boundary pada logPage
	lm.latestLSN++
	return lm.latestLSN, nil
}
