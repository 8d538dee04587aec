package executor

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/lib/buffer"
	"github.com/lintang-b-s/lintangdb/lib/concurrency"
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/lib/index"
	"github.com/lintang-b-s/lintangdb/lib/logger"
	"github.com/lintang-b-s/lintangdb/lib/table"
	"github.com/lintang-b-s/lintangdb/types"
)

type testEnv struct {
	bpm  *buffer.BufferPoolManager
	lm   *concurrency.LockManager
	tm   *concurrency.TransactionManager
	heap *table.TableHeap
	tree *index.BPlusTree
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dm, err := disk.NewDiskManager(t.TempDir(), lib.PAGE_FILE_NAME, lib.PAGE_SIZE, logger.NewDiscard())
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	bpm := buffer.NewBufferPoolManager(50, dm, nil, logger.NewDiscard())
	t.Cleanup(func() { bpm.Close() })

	lm := concurrency.NewLockManager(logger.NewDiscard())
	tm := concurrency.NewTransactionManager(lm, nil, logger.NewDiscard())

	heap, err := table.NewTableHeap(bpm, logger.NewDiscard())
	require.NoError(t, err)

	tree, err := index.NewBPlusTree("pk", bpm, index.IntegerComparator, 32, 32, logger.NewDiscard())
	require.NoError(t, err)

	return &testEnv{bpm: bpm, lm: lm, tm: tm, heap: heap, tree: tree}
}

func rowWithKey(key int64, payload string) []byte {
	row := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint64(row, uint64(key))
	copy(row[8:], payload)
	return row
}

func keyOf(data []byte) int64 {
	return int64(binary.LittleEndian.Uint64(data))
}

func drain(t *testing.T, e Executor) []Tuple {
	t.Helper()
	require.NoError(t, e.Init())
	var out []Tuple
	var tuple Tuple
	for {
		ok, err := e.Next(&tuple)
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, tuple)
	}
}

func TestInsertAndSeqScan(t *testing.T) {
	env := newTestEnv(t)

	rows := [][]byte{
		rowWithKey(1, "satu"),
		rowWithKey(2, "dua"),
		rowWithKey(3, "tiga"),
	}

	txn := env.tm.Begin(concurrency.REPEATABLE_READ)
	ctx := NewExecutorContext(env.bpm, env.lm, env.tm, txn, logger.NewDiscard())

	inserted := drain(t, NewInsertExecutor(ctx, env.heap, rows, env.tree, keyOf))
	require.Len(t, inserted, 3)

	// tiap rid baru ke-X-lock
	for _, tup := range inserted {
		assert.True(t, txn.IsExclusiveLocked(tup.RID))
	}

	// index kemaintain: lookup by key nemu rid yang sama
	for i, tup := range inserted {
		rid, ok := env.tree.GetValue(int64(i + 1))
		require.True(t, ok)
		assert.Equal(t, tup.RID, rid)
	}
	env.tm.Commit(txn)

	t.Run("seq scan baca semua row", func(t *testing.T) {
		txn2 := env.tm.Begin(concurrency.REPEATABLE_READ)
		ctx2 := NewExecutorContext(env.bpm, env.lm, env.tm, txn2, logger.NewDiscard())

		got := drain(t, NewSeqScanExecutor(ctx2, env.heap, nil))
		require.Len(t, got, 3)
		assert.Equal(t, int64(1), keyOf(got[0].Data))

		// repeatable read: S lock ketahan sampai commit
		assert.NotEmpty(t, txn2.GetLockedRIDs())
		env.tm.Commit(txn2)
		assert.Empty(t, txn2.GetLockedRIDs())
	})

	t.Run("read committed release S lock langsung", func(t *testing.T) {
		txn3 := env.tm.Begin(concurrency.READ_COMMITTED)
		ctx3 := NewExecutorContext(env.bpm, env.lm, env.tm, txn3, logger.NewDiscard())

		got := drain(t, NewSeqScanExecutor(ctx3, env.heap, nil))
		require.Len(t, got, 3)
		assert.Empty(t, txn3.GetLockedRIDs())
		env.tm.Commit(txn3)
	})

	t.Run("read uncommitted gak ngelock sama sekali", func(t *testing.T) {
		txn4 := env.tm.Begin(concurrency.READ_UNCOMMITTED)
		ctx4 := NewExecutorContext(env.bpm, env.lm, env.tm, txn4, logger.NewDiscard())

		got := drain(t, NewSeqScanExecutor(ctx4, env.heap, nil))
		require.Len(t, got, 3)
		assert.Empty(t, txn4.GetLockedRIDs())
		assert.NotEqual(t, concurrency.ABORTED, txn4.GetState())
		env.tm.Commit(txn4)
	})

	t.Run("predicate filter row", func(t *testing.T) {
		txn5 := env.tm.Begin(concurrency.READ_COMMITTED)
		ctx5 := NewExecutorContext(env.bpm, env.lm, env.tm, txn5, logger.NewDiscard())

		got := drain(t, NewSeqScanExecutor(ctx5, env.heap, func(data []byte) bool {
			return keyOf(data)%2 == 1
		}))
		assert.Len(t, got, 2)
		env.tm.Commit(txn5)
	})
}

func TestLimitExecutor(t *testing.T) {
	env := newTestEnv(t)

	txn := env.tm.Begin(concurrency.READ_COMMITTED)
	ctx := NewExecutorContext(env.bpm, env.lm, env.tm, txn, logger.NewDiscard())

	rows := make([][]byte, 10)
	for i := range rows {
		rows[i] = rowWithKey(int64(i), "row")
	}
	drain(t, NewInsertExecutor(ctx, env.heap, rows, nil, nil))

	got := drain(t, NewLimitExecutor(NewSeqScanExecutor(ctx, env.heap, nil), 4))
	assert.Len(t, got, 4)
	env.tm.Commit(txn)
}

func TestDistinctExecutor(t *testing.T) {
	env := newTestEnv(t)

	txn := env.tm.Begin(concurrency.READ_COMMITTED)
	ctx := NewExecutorContext(env.bpm, env.lm, env.tm, txn, logger.NewDiscard())

	rows := [][]byte{
		rowWithKey(1, "a"),
		rowWithKey(1, "a"),
		rowWithKey(2, "b"),
		rowWithKey(2, "b"),
		rowWithKey(2, "b"),
		rowWithKey(3, "c"),
	}
	drain(t, NewInsertExecutor(ctx, env.heap, rows, nil, nil))

	got := drain(t, NewDistinctExecutor(NewSeqScanExecutor(ctx, env.heap, nil)))
	assert.Len(t, got, 3)
	env.tm.Commit(txn)
}

// lock failure ditranslate jadi ErrTransactionAborted.
func TestSeqScanAbortedTxn(t *testing.T) {
	env := newTestEnv(t)

	txn := env.tm.Begin(concurrency.READ_COMMITTED)
	ctx := NewExecutorContext(env.bpm, env.lm, env.tm, txn, logger.NewDiscard())
	drain(t, NewInsertExecutor(ctx, env.heap, [][]byte{rowWithKey(1, "x")}, nil, nil))
	env.tm.Commit(txn)

	// txn yang udah masuk SHRINKING gak boleh ngelock lagi
	txn2 := env.tm.Begin(concurrency.REPEATABLE_READ)
	require.True(t, env.lm.LockShared(txn2, inserted(t, env)))
	require.True(t, env.lm.Unlock(txn2, inserted(t, env)))
	require.Equal(t, concurrency.SHRINKING, txn2.GetState())

	ctx2 := NewExecutorContext(env.bpm, env.lm, env.tm, txn2, logger.NewDiscard())
	scan := NewSeqScanExecutor(ctx2, env.heap, nil)
	require.NoError(t, scan.Init())

	var tuple Tuple
	_, err := scan.Next(&tuple)
	assert.ErrorIs(t, err, ErrTransactionAborted)
	env.tm.Abort(txn2)
}

// inserted. rid dari satu-satunya row di heap.
func inserted(t *testing.T, env *testEnv) (rid types.RID) {
	t.Helper()
	it := env.heap.Iterator()
	_, rid, ok := it.Next()
	require.True(t, ok)
	return rid
}
