package concurrency

import (
	"sync"
	"sync/atomic"

	"github.com/lintang-b-s/lintangdb/lib/buffer"
	"github.com/lintang-b-s/lintangdb/types"
)

type TransactionState int32

const (
	GROWING TransactionState = iota
	SHRINKING
	COMMITTED
	ABORTED
)

type IsolationLevel int32

const (
	READ_UNCOMMITTED IsolationLevel = iota
	READ_COMMITTED
	REPEATABLE_READ
)

type AbortReason int32

const (
	ABORT_REASON_NONE AbortReason = iota
	LOCK_ON_SHRINKING
	UPGRADE_CONFLICT
	DEADLOCK
	LOCK_SHARED_ON_READ_UNCOMMITTED
)

func (r AbortReason) String() string {
	switch r {
	case LOCK_ON_SHRINKING:
		return "LOCK_ON_SHRINKING"
	case UPGRADE_CONFLICT:
		return "UPGRADE_CONFLICT"
	case DEADLOCK:
		return "DEADLOCK"
	case LOCK_SHARED_ON_READ_UNCOMMITTED:
		return "LOCK_SHARED_ON_READ_UNCOMMITTED"
	}
	return "NONE"
}

// Transaction. satu transaksi 2PL. state & lock sets diupdate lock manager, page set &
// deleted page set dibawa selama write descent di btree (latch yang diacquire dicatat
// di sini biar safe-child detection bisa release semua ancestor latch sekaligus).
type Transaction struct {
	id          types.TxnID
	state       atomic.Int32
	abortReason atomic.Int32
	isolation   IsolationLevel
	prevLSN     types.LSN

	latch            sync.Mutex
	sharedLockSet    map[types.RID]struct{}
	exclusiveLockSet map[types.RID]struct{}
	pageSet          []*buffer.Frame
	deletedPageSet   map[types.PageID]struct{}
}

func NewTransaction(id types.TxnID, isolation IsolationLevel) *Transaction {
	txn := &Transaction{
		id:               id,
		isolation:        isolation,
		prevLSN:          types.InvalidLSN,
		sharedLockSet:    make(map[types.RID]struct{}),
		exclusiveLockSet: make(map[types.RID]struct{}),
		deletedPageSet:   make(map[types.PageID]struct{}),
	}
	txn.state.Store(int32(GROWING))
	return txn
}

func (txn *Transaction) GetID() types.TxnID {
	return txn.id
}

func (txn *Transaction) GetState() TransactionState {
	return TransactionState(txn.state.Load())
}

func (txn *Transaction) SetState(state TransactionState) {
	txn.state.Store(int32(state))
}

// Abort. set state ABORTED + reason tag. dipanggil txn sendiri pas illegal 2PL transition
// atau txn lain pas wound-wait.
func (txn *Transaction) Abort(reason AbortReason) {
	txn.abortReason.Store(int32(reason))
	txn.state.Store(int32(ABORTED))
}

func (txn *Transaction) GetAbortReason() AbortReason {
	return AbortReason(txn.abortReason.Load())
}

func (txn *Transaction) GetIsolationLevel() IsolationLevel {
	return txn.isolation
}

func (txn *Transaction) GetPrevLSN() types.LSN {
	return txn.prevLSN
}

func (txn *Transaction) SetPrevLSN(lsn types.LSN) {
	txn.prevLSN = lsn
}

func (txn *Transaction) IsSharedLocked(rid types.RID) bool {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	_, ok := txn.sharedLockSet[rid]
	return ok
}

func (txn *Transaction) IsExclusiveLocked(rid types.RID) bool {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	_, ok := txn.exclusiveLockSet[rid]
	return ok
}

func (txn *Transaction) addSharedLock(rid types.RID) {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	txn.sharedLockSet[rid] = struct{}{}
}

func (txn *Transaction) addExclusiveLock(rid types.RID) {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	txn.exclusiveLockSet[rid] = struct{}{}
}

func (txn *Transaction) removeLock(rid types.RID) {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	delete(txn.sharedLockSet, rid)
	delete(txn.exclusiveLockSet, rid)
}

// GetLockedRIDs. semua rid yang lagi dihold (shared + exclusive). dipakai transaction
// manager pas release semua lock di commit/abort.
func (txn *Transaction) GetLockedRIDs() []types.RID {
	txn.latch.Lock()
	defer txn.latch.Unlock()

	rids := make([]types.RID, 0, len(txn.sharedLockSet)+len(txn.exclusiveLockSet))
	for rid := range txn.sharedLockSet {
		rids = append(rids, rid)
	}
	for rid := range txn.exclusiveLockSet {
		rids = append(rids, rid)
	}
	return rids
}

// AddIntoPageSet. catat frame yang lagi di-write-latch selama descent.
func (txn *Transaction) AddIntoPageSet(frame *buffer.Frame) {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	txn.pageSet = append(txn.pageSet, frame)
}

// GetPageSet. return latched frames, urut dari ancestor paling atas.
func (txn *Transaction) GetPageSet() []*buffer.Frame {
	txn.latch.Lock()
	defer txn.latch.Unlock()

	out := make([]*buffer.Frame, len(txn.pageSet))
	copy(out, txn.pageSet)
	return out
}

func (txn *Transaction) ClearPageSet() {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	txn.pageSet = txn.pageSet[:0]
}

func (txn *Transaction) AddIntoDeletedPageSet(pageID types.PageID) {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	txn.deletedPageSet[pageID] = struct{}{}
}

func (txn *Transaction) GetDeletedPageSet() []types.PageID {
	txn.latch.Lock()
	defer txn.latch.Unlock()

	out := make([]types.PageID, 0, len(txn.deletedPageSet))
	for pid := range txn.deletedPageSet {
		out = append(out, pid)
	}
	return out
}

func (txn *Transaction) ClearDeletedPageSet() {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	txn.deletedPageSet = make(map[types.PageID]struct{})
}
