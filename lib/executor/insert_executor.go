package executor

import (
	"github.com/lintang-b-s/lintangdb/lib/index"
	"github.com/lintang-b-s/lintangdb/lib/table"
)

// KeyExtractor. ambil index key dari raw tuple. dipakai insert executor buat maintain
// btree index.
type KeyExtractor func(data []byte) int64

// InsertExecutor. insert raw values ke table heap, X-lock tiap rid baru, & maintain
// btree index kalau ada.
type InsertExecutor struct {
	ctx    *ExecutorContext
	heap   *table.TableHeap
	rows   [][]byte
	tree   *index.BPlusTree
	keyFn  KeyExtractor
	cursor int
}

func NewInsertExecutor(ctx *ExecutorContext, heap *table.TableHeap, rows [][]byte,
	tree *index.BPlusTree, keyFn KeyExtractor) *InsertExecutor {
	return &InsertExecutor{ctx: ctx, heap: heap, rows: rows, tree: tree, keyFn: keyFn}
}

func (e *InsertExecutor) Init() error {
	e.cursor = 0
	return nil
}

// Next. insert satu row per call, isi tuple dengan row & rid barunya lalu return true.
// return false setelah semua row keinsert.
func (e *InsertExecutor) Next(tuple *Tuple) (bool, error) {
	if e.cursor >= len(e.rows) {
		return false, nil
	}

	row := e.rows[e.cursor]
	e.cursor++

	rid, err := e.heap.InsertTuple(row)
	if err != nil {
		return false, err
	}

	if err := e.ctx.lockWrite(rid); err != nil {
		return false, err
	}

	if e.tree != nil && e.keyFn != nil {
		if _, err := e.tree.Insert(e.keyFn(row), rid, e.ctx.GetTransaction()); err != nil {
			return false, err
		}
	}

	tuple.Data = row
	tuple.RID = rid
	return true, nil
}
