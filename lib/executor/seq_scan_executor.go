package executor

import (
	"github.com/lintang-b-s/lintangdb/lib/table"
)

// Predicate. filter baris. nil = semua baris lolos.
type Predicate func(data []byte) bool

// SeqScanExecutor. full scan table heap, ngelock tiap baris sesuai isolation level
// transaksi sebelum dibaca.
type SeqScanExecutor struct {
	ctx       *ExecutorContext
	heap      *table.TableHeap
	predicate Predicate
	iter      *table.TableIterator
}

func NewSeqScanExecutor(ctx *ExecutorContext, heap *table.TableHeap, predicate Predicate) *SeqScanExecutor {
	return &SeqScanExecutor{ctx: ctx, heap: heap, predicate: predicate}
}

func (e *SeqScanExecutor) Init() error {
	e.iter = e.heap.Iterator()
	return nil
}

func (e *SeqScanExecutor) Next(tuple *Tuple) (bool, error) {
	for {
		data, rid, ok := e.iter.Next()
		if !ok {
			return false, nil
		}

		if err := e.ctx.lockRead(rid); err != nil {
			return false, err
		}
		// iterator sudah megang copy datanya, tapi re-read under lock biar yang kebaca
		// versi yang sudah gak bisa ditimpa writer lain.
		data, ok = e.heap.GetTuple(rid)
		e.ctx.unlockRead(rid)
		if !ok {
			continue
		}

		if e.predicate != nil && !e.predicate(data) {
			continue
		}

		tuple.Data = data
		tuple.RID = rid
		return true, nil
	}
}
