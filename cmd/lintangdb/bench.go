package main

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/lib/buffer"
	"github.com/lintang-b-s/lintangdb/lib/concurrency"
	"github.com/lintang-b-s/lintangdb/lib/concurrent"
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/lib/executor"
	"github.com/lintang-b-s/lintangdb/lib/index"
	"github.com/lintang-b-s/lintangdb/lib/log"
	"github.com/lintang-b-s/lintangdb/lib/table"
)

var (
	benchRows    int
	benchWorkers int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Load rows through the executor stack and scan them back",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchRows, "rows", 100000, "number of rows to insert")
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 4, "number of insert workers")
}

type benchResult struct {
	inserted int
	aborted  int
	took     time.Duration
}

func runBench(cmd *cobra.Command, args []string) error {
	dm, err := disk.NewDiskManager(cfg.DataDir, cfg.PageFileName, lib.PAGE_SIZE, lg)
	if err != nil {
		return err
	}
	defer dm.Close()

	logDm, err := disk.NewDiskManager(cfg.DataDir, cfg.LogFileName, lib.PAGE_SIZE, lg)
	if err != nil {
		return err
	}
	defer logDm.Close()

	lm, err := log.NewLogManager(logDm)
	if err != nil {
		return err
	}

	bpm := buffer.NewBufferPoolManager(cfg.PoolSize, dm, lm, lg)
	defer bpm.Close()

	lockManager := concurrency.NewLockManager(lg)
	txnManager := concurrency.NewTransactionManager(lockManager, lm, lg)

	heap, err := table.NewTableHeap(bpm, lg)
	if err != nil {
		return err
	}
	tree, err := index.NewBPlusTree("bench_pk", bpm, index.IntegerComparator,
		index.LeafPageCapacity(lib.PAGE_SIZE), index.InternalPageCapacity(lib.PAGE_SIZE), lg)
	if err != nil {
		return err
	}

	keyFn := func(data []byte) int64 {
		return int64(binary.LittleEndian.Uint64(data))
	}

	// fan out insert batches ke worker pool
	start := time.Now()
	batch := benchRows / benchWorkers
	pool := concurrent.NewWorkerPool[int, benchResult](benchWorkers, benchWorkers)
	pool.Start(func(worker int) benchResult {
		t0 := time.Now()
		res := benchResult{}

		rows := make([][]byte, 0, batch)
		for i := 0; i < batch; i++ {
			row := make([]byte, 16)
			binary.LittleEndian.PutUint64(row, uint64(worker*batch+i))
			binary.LittleEndian.PutUint64(row[8:], uint64(i))
			rows = append(rows, row)
		}

		txn := txnManager.Begin(concurrency.READ_COMMITTED)
		ctx := executor.NewExecutorContext(bpm, lockManager, txnManager, txn, lg)
		insert := executor.NewInsertExecutor(ctx, heap, rows, tree, keyFn)
		if err := insert.Init(); err != nil {
			txnManager.Abort(txn)
			res.aborted++
			return res
		}
		var tuple executor.Tuple
		for {
			ok, err := insert.Next(&tuple)
			if err != nil {
				txnManager.Abort(txn)
				res.aborted++
				return res
			}
			if !ok {
				break
			}
			res.inserted++
		}
		txnManager.Commit(txn)
		res.took = time.Since(t0)
		return res
	})

	for w := 0; w < benchWorkers; w++ {
		pool.AddJob(w)
	}
	pool.CloseJobQueue()
	pool.Wait()

	inserted, aborted := 0, 0
	for res := range pool.CollectResults() {
		inserted += res.inserted
		aborted += res.aborted
	}
	insertTook := time.Since(start)

	// checkpoint-style flush di background selagi scan jalan
	bpm.FlushAllAsync()

	// scan balik lewat seq scan + limit
	scanStart := time.Now()
	txn := txnManager.Begin(concurrency.READ_COMMITTED)
	ctx := executor.NewExecutorContext(bpm, lockManager, txnManager, txn, lg)
	scan := executor.NewLimitExecutor(executor.NewSeqScanExecutor(ctx, heap, nil), benchRows)
	if err := scan.Init(); err != nil {
		txnManager.Abort(txn)
		return err
	}
	scanned := 0
	var tuple executor.Tuple
	for {
		ok, err := scan.Next(&tuple)
		if err != nil {
			txnManager.Abort(txn)
			return err
		}
		if !ok {
			break
		}
		scanned++
	}
	txnManager.Commit(txn)
	scanTook := time.Since(scanStart)

	bpm.FlushAll()

	fmt.Printf("inserted %d rows (%d txn aborted) in %s\n", inserted, aborted, insertTook)
	fmt.Printf("scanned  %d rows in %s\n", scanned, scanTook)
	fmt.Printf("disk writes: %d\n", dm.GetNumWrites())
	return nil
}
