package disk

import (
	"errors"
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/types"
)

var ErrReadOutOfRange = errors.New("read page out of range")

// DiskManager. random page I/O ke satu page file flat. page dengan id pid diread/write
// pada offset pid * pageSize. page id dialokasikan monoton, page yang dideallocate
// masuk freelist biar bisa direuse.
type DiskManager struct {
	dbDir     string
	fileName  string
	pageSize  int
	file      *os.File
	freelist  *Freelist
	numWrites uint64
	latch     sync.Mutex
	logger    *log.Logger
}

func NewDiskManager(dbDir string, fileName string, pageSize int, logger *log.Logger) (*DiskManager, error) {
	_, err := os.Stat(dbDir)
	if os.IsNotExist(err) {
		os.Mkdir(dbDir, 0755)
	}

	f, err := os.OpenFile(dbDir+"/"+fileName, os.O_RDWR|os.O_CREATE|os.O_SYNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("open page file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	// high-water mark dari page id = jumlah page yang sudah ada di file - 1. page 0
	// reserved buat header page & tidak pernah dialokasikan ke caller.
	maxPage := types.PageID(fi.Size()/int64(pageSize)) - 1
	if maxPage < lib.HEADER_PAGE_ID {
		maxPage = lib.HEADER_PAGE_ID
	}

	return &DiskManager{
		dbDir:    dbDir,
		fileName: fileName,
		pageSize: pageSize,
		file:     f,
		freelist: NewFreelist(maxPage),
		logger:   logger,
	}, nil
}

// ReadPage. membaca satu page dari disk ke page buffer.
func (dm *DiskManager) ReadPage(pageID types.PageID, page *Page) error {
	dm.latch.Lock()
	defer dm.latch.Unlock()

	fi, err := dm.file.Stat()
	if err != nil {
		return err
	}
	if int64(int(pageID)+1)*int64(dm.pageSize) > fi.Size() {
		return ErrReadOutOfRange
	}

	// Seek ke posisi pageID * pageSize
	_, err = dm.file.Seek(int64(int(pageID)*dm.pageSize), 0)
	if err != nil {
		return err
	}
	_, err = dm.file.Read(page.Contents())
	if err != nil {
		dm.logger.WithFields(log.Fields{"pageID": pageID}).Errorf("read page: %v", err)
		return err
	}
	return nil
}

// WritePage. menulis satu page ke disk pada offset pageID * pageSize.
func (dm *DiskManager) WritePage(pageID types.PageID, page *Page) error {
	dm.latch.Lock()
	defer dm.latch.Unlock()

	_, err := dm.file.Seek(int64(int(pageID)*dm.pageSize), 0)
	if err != nil {
		return err
	}

	_, err = dm.file.Write(page.Contents())
	if err != nil {
		dm.logger.WithFields(log.Fields{"pageID": pageID}).Errorf("write page: %v", err)
		return err
	}
	dm.numWrites++

	return nil
}

// AllocatePage. return page id baru. ambil dari freelist dulu, kalau kosong increment
// high-water mark.
func (dm *DiskManager) AllocatePage() types.PageID {
	return dm.freelist.GetNextPage()
}

// DeallocatePage. release page id ke freelist biar direuse AllocatePage berikutnya.
// data di disk tidak dihapus, cuma id nya yang direcycle.
func (dm *DiskManager) DeallocatePage(pageID types.PageID) {
	dm.freelist.ReleasePage(pageID)
}

func (dm *DiskManager) PageSize() int {
	return dm.pageSize
}

// NumPages. return jumlah page pada page file.
func (dm *DiskManager) NumPages() (int, error) {
	dm.latch.Lock()
	defer dm.latch.Unlock()

	fi, err := dm.file.Stat()
	if err != nil {
		return 0, err
	}
	return int(fi.Size() / int64(dm.pageSize)), nil
}

func (dm *DiskManager) GetNumWrites() uint64 {
	dm.latch.Lock()
	defer dm.latch.Unlock()

	return dm.numWrites
}

func (dm *DiskManager) GetDBDir() string {
	return dm.dbDir
}

func (dm *DiskManager) Close() error {
	return dm.file.Close()
}
