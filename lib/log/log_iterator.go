package log

import (
	"iter"

	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/types"
)

// LogIterator. buat iterate log record yang udah ditulis di file. iteratenya dari yang
// terakhir ditulis ke yang terdahulu.
type LogIterator struct {
	diskManager DiskManager
	pageID      types.PageID
	page        *disk.Page
	currentPos  int
	err         error
}

func NewLogIterator(diskManager DiskManager, pageID types.PageID) (*LogIterator, error) {
	page := disk.NewPageFromByteSlice(make([]byte, diskManager.PageSize()))

	lit := &LogIterator{
		diskManager: diskManager,
		pageID:      pageID,
		page:        page,
	}
	if err := lit.moveToPage(pageID); err != nil {
		return nil, err
	}
	return lit, nil
}

// moveToPage. move iterator ke pageID.
func (lit *LogIterator) moveToPage(pageID types.PageID) error {
	err := lit.diskManager.ReadPage(pageID, lit.page)
	if err != nil {
		return err
	}
	lit.pageID = pageID
	lit.currentPos = int(lit.page.GetInt(0))
	return nil
}

/*
IterateLog. iterate next log record di dalam page dari yang terkini ke yang terdahulu.
jika record di page ini sudah habis, pindah ke page sebelumnya.
*/
func (lit *LogIterator) IterateLog() iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for lit.pageID >= 0 {

			if lit.currentPos >= lit.diskManager.PageSize() {
				// record di page ini habis, pindah ke page sebelumnya.
				prev := lit.pageID - 1
				if prev < 0 {
					break
				}
				if err := lit.moveToPage(prev); err != nil {
					lit.err = err
					break
				}
			}

			record := lit.page.GetBytes(int32(lit.currentPos)) // get satu logRecord dari currentPos
			lit.currentPos += 4 + len(record)                  // increment currentPos + 4 (karena ada length di awal record)

			if !yield(record) {
				return
			}
		}
	}
}

func (lit *LogIterator) GetError() error {
	return lit.err
}
