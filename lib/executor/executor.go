package executor

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/lintang-b-s/lintangdb/lib/buffer"
	"github.com/lintang-b-s/lintangdb/lib/concurrency"
	"github.com/lintang-b-s/lintangdb/types"
)

// ErrTransactionAborted. lock failure diterjemahin jadi error ini; executor loop di atas
// yang surface ke caller (& manggil TransactionManager.Abort).
var ErrTransactionAborted = errors.New("transaction aborted")

// Tuple. row mentah + rid nya.
type Tuple struct {
	Data []byte
	RID  types.RID
}

// Executor. volcano-style pull iterator: Init sekali, Next sampai return false.
type Executor interface {
	Init() error
	Next(tuple *Tuple) (bool, error)
}

// ExecutorContext. handle yang disupply ke semua operator: buffer pool, lock manager,
// transaction manager & transaksi yang lagi jalan.
type ExecutorContext struct {
	bpm         *buffer.BufferPoolManager
	lockManager *concurrency.LockManager
	txnManager  *concurrency.TransactionManager
	txn         *concurrency.Transaction
	logger      *log.Logger
}

func NewExecutorContext(bpm *buffer.BufferPoolManager, lockManager *concurrency.LockManager,
	txnManager *concurrency.TransactionManager, txn *concurrency.Transaction,
	logger *log.Logger) *ExecutorContext {
	return &ExecutorContext{
		bpm:         bpm,
		lockManager: lockManager,
		txnManager:  txnManager,
		txn:         txn,
		logger:      logger,
	}
}

func (ctx *ExecutorContext) GetBufferPoolManager() *buffer.BufferPoolManager {
	return ctx.bpm
}

func (ctx *ExecutorContext) GetLockManager() *concurrency.LockManager {
	return ctx.lockManager
}

func (ctx *ExecutorContext) GetTransactionManager() *concurrency.TransactionManager {
	return ctx.txnManager
}

func (ctx *ExecutorContext) GetTransaction() *concurrency.Transaction {
	return ctx.txn
}

// lockRead. ambil S lock pada rid sesuai isolation level transaksi:
// READ_UNCOMMITTED gak ngelock sama sekali; READ_COMMITTED ngelock & langsung release
// setelah read; REPEATABLE_READ ngelock & hold sampai commit.
func (ctx *ExecutorContext) lockRead(rid types.RID) error {
	txn := ctx.txn
	if txn == nil || txn.GetIsolationLevel() == concurrency.READ_UNCOMMITTED {
		return nil
	}
	if txn.IsSharedLocked(rid) || txn.IsExclusiveLocked(rid) {
		return nil
	}
	if !ctx.lockManager.LockShared(txn, rid) {
		return ErrTransactionAborted
	}
	return nil
}

// unlockRead. release S lock setelah read kalau isolation levelnya membolehkan.
func (ctx *ExecutorContext) unlockRead(rid types.RID) {
	txn := ctx.txn
	if txn == nil || txn.GetIsolationLevel() != concurrency.READ_COMMITTED {
		return
	}
	if txn.IsSharedLocked(rid) {
		ctx.lockManager.Unlock(txn, rid)
	}
}

// lockWrite. ambil X lock pada rid (upgrade kalau sudah pegang S).
func (ctx *ExecutorContext) lockWrite(rid types.RID) error {
	txn := ctx.txn
	if txn == nil {
		return nil
	}
	if txn.IsExclusiveLocked(rid) {
		return nil
	}

	var ok bool
	if txn.IsSharedLocked(rid) {
		ok = ctx.lockManager.LockUpgrade(txn, rid)
	} else {
		ok = ctx.lockManager.LockExclusive(txn, rid)
	}
	if !ok {
		return ErrTransactionAborted
	}
	return nil
}
