package buffer

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/lintang-b-s/lintangdb/types"
)

// ParallelBufferPoolManager. facade yang nyimpan numInstances BufferPoolManager independen,
// disharding dengan pageID mod numInstances. tiap operasi pada pid diroute deterministik ke
// instance pid mod N, jadi tidak ada contention antar shard.
type ParallelBufferPoolManager struct {
	instances  []*BufferPoolManager
	startIndex int // rotating start index buat NewPage, biar alokasi kesebar antar instance
	poolSize   int
	latch      sync.Mutex
}

func NewParallelBufferPoolManager(numInstances, poolSize int, diskManager DiskManager,
	logManager LogManager, logger *log.Logger) *ParallelBufferPoolManager {
	instances := make([]*BufferPoolManager, numInstances)
	for i := 0; i < numInstances; i++ {
		instances[i] = NewBufferPoolManagerInstance(poolSize, numInstances, i, diskManager,
			logManager, logger)
	}
	return &ParallelBufferPoolManager{
		instances:  instances,
		startIndex: 0,
		poolSize:   numInstances * poolSize,
	}
}

func (p *ParallelBufferPoolManager) GetPoolSize() int {
	return p.poolSize
}

// getInstance. instance yang responsible buat pageID.
func (p *ParallelBufferPoolManager) getInstance(pageID types.PageID) *BufferPoolManager {
	return p.instances[int(pageID)%len(p.instances)]
}

// NewPage. coba NewPage dari startIndex, muter ke semua instance sampai ada yang punya
// frame kosong. startIndex dibump tiap call biar alokasi kesebar.
func (p *ParallelBufferPoolManager) NewPage() (*Frame, error) {
	p.latch.Lock()
	start := p.startIndex
	p.startIndex = (p.startIndex + 1) % len(p.instances)
	p.latch.Unlock()

	var (
		frame *Frame
		err   error
	)
	for i := 0; i < len(p.instances); i++ {
		instance := p.instances[(start+i)%len(p.instances)]
		frame, err = instance.NewPage()
		if err == nil {
			break
		}
	}

	if frame == nil {
		return nil, err
	}
	return frame, nil
}

func (p *ParallelBufferPoolManager) FetchPage(pageID types.PageID) (*Frame, error) {
	return p.getInstance(pageID).FetchPage(pageID)
}

func (p *ParallelBufferPoolManager) UnpinPage(pageID types.PageID, isDirty bool) bool {
	return p.getInstance(pageID).UnpinPage(pageID, isDirty)
}

func (p *ParallelBufferPoolManager) FlushPage(pageID types.PageID) bool {
	return p.getInstance(pageID).FlushPage(pageID)
}

func (p *ParallelBufferPoolManager) DeletePage(pageID types.PageID) bool {
	return p.getInstance(pageID).DeletePage(pageID)
}

func (p *ParallelBufferPoolManager) FlushAll() {
	for _, instance := range p.instances {
		instance.FlushAll()
	}
}
