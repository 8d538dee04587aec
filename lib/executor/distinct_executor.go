package executor

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// DistinctExecutor. buang row duplicate dari child. dedup pakai hash dari raw bytes,
// collision dicek dengan compare isi bucketnya.
type DistinctExecutor struct {
	child Executor
	seen  map[uint64][][]byte
}

func NewDistinctExecutor(child Executor) *DistinctExecutor {
	return &DistinctExecutor{child: child}
}

func (e *DistinctExecutor) Init() error {
	e.seen = make(map[uint64][][]byte)
	return e.child.Init()
}

func (e *DistinctExecutor) Next(tuple *Tuple) (bool, error) {
	for {
		ok, err := e.child.Next(tuple)
		if err != nil || !ok {
			return false, err
		}

		h := xxhash.Sum64(tuple.Data)
		dup := false
		for _, prev := range e.seen[h] {
			if bytes.Equal(prev, tuple.Data) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		row := make([]byte, len(tuple.Data))
		copy(row, tuple.Data)
		e.seen[h] = append(e.seen[h], row)
		return true, nil
	}
}
