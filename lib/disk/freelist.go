package disk

import (
	"sort"
	"sync"

	"github.com/lintang-b-s/lintangdb/types"
)

// Freelist. menyimpan page id yang sudah dideallocate biar bisa direuse pas AllocatePage
// berikutnya, jadi page file tidak terus membesar.
type Freelist struct {
	maxPage       types.PageID
	releasedPages []types.PageID
	latch         sync.Mutex
}

func NewFreelist(maxPage types.PageID) *Freelist {
	return &Freelist{
		maxPage:       maxPage,
		releasedPages: []types.PageID{},
	}
}

// GetNextPage. ambil page id dari releasedPages kalau ada (yang terkecil dulu), kalau kosong
// increment maxPage.
func (fr *Freelist) GetNextPage() types.PageID {
	fr.latch.Lock()
	defer fr.latch.Unlock()

	if len(fr.releasedPages) != 0 {
		sort.Slice(fr.releasedPages, func(i, j int) bool {
			return fr.releasedPages[i] < fr.releasedPages[j]
		})
		pageID := fr.releasedPages[0]
		fr.releasedPages = fr.releasedPages[1:]
		return pageID
	}
	fr.maxPage += 1
	return fr.maxPage
}

func (fr *Freelist) ReleasePage(page types.PageID) {
	fr.latch.Lock()
	defer fr.latch.Unlock()

	fr.releasedPages = append(fr.releasedPages, page)
}

func (fr *Freelist) MaxPage() types.PageID {
	fr.latch.Lock()
	defer fr.latch.Unlock()

	return fr.maxPage
}

func (fr *Freelist) ReleasedPages() []types.PageID {
	fr.latch.Lock()
	defer fr.latch.Unlock()

	out := make([]types.PageID, len(fr.releasedPages))
	copy(out, fr.releasedPages)
	return out
}
