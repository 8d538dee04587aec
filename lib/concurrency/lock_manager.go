package concurrency

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/lintang-b-s/lintangdb/types"
)

type LockMode int32

const (
	SHARED LockMode = iota
	EXCLUSIVE
)

// LockRequest. satu request di FIFO queue milik satu rid.
type LockRequest struct {
	txnID   types.TxnID
	mode    LockMode
	granted bool
}

// LockRequestQueue. FIFO queue dari lock request pada satu rid + condvar tempat requester
// nunggu sampai grantable, + slot upgrading (cuma satu txn yang boleh upgrade S->X pada
// satu rid pada satu waktu).
type LockRequestQueue struct {
	requests  []*LockRequest
	cv        *sync.Cond
	upgrading types.TxnID
}

// LockManager. row-level shared/exclusive lock dengan 2PL + wound-wait deadlock
// prevention: requester yang lebih tua abort semua request yang lebih muda yang conflict;
// requester tidak pernah abort yang lebih tua, dia nunggu. edge di wait-for graph jadi
// strictly younger -> older, makanya deadlock-free.
type LockManager struct {
	latch     sync.Mutex
	lockTable map[types.RID]*LockRequestQueue

	// lookup txn by id, buat wound-wait abort txn lain. diset transaction manager.
	getTxn func(types.TxnID) *Transaction

	logger *log.Logger
}

func NewLockManager(logger *log.Logger) *LockManager {
	return &LockManager{
		lockTable: make(map[types.RID]*LockRequestQueue),
		logger:    logger,
	}
}

// getQueue. queue milik rid, dibuat lazily. caller harus hold lm.latch.
func (lm *LockManager) getQueue(rid types.RID) *LockRequestQueue {
	queue, ok := lm.lockTable[rid]
	if !ok {
		queue = &LockRequestQueue{
			cv:        sync.NewCond(&lm.latch),
			upgrading: types.InvalidTxnID,
		}
		lm.lockTable[rid] = queue
	}
	return queue
}

// LockShared. acquire S lock pada rid. block di condvar queue sampai grantable atau
// txn di abort.
func (lm *LockManager) LockShared(txn *Transaction, rid types.RID) bool {
	if txn.GetState() == ABORTED {
		return false
	}

	if txn.GetIsolationLevel() == READ_UNCOMMITTED {
		// read uncommitted gak butuh S lock, ini salah pakai
		txn.Abort(LOCK_SHARED_ON_READ_UNCOMMITTED)
		return false
	}

	if txn.GetState() != GROWING {
		txn.Abort(LOCK_ON_SHRINKING)
		return false
	}

	if txn.IsSharedLocked(rid) || txn.IsExclusiveLocked(rid) {
		return true
	}

	lm.latch.Lock()
	defer lm.latch.Unlock()

	queue := lm.getQueue(rid)
	request := &LockRequest{txnID: txn.GetID(), mode: SHARED}
	queue.requests = append(queue.requests, request)
	txn.addSharedLock(rid)

	for lm.needWait(txn, queue, SHARED) {
		queue.cv.Wait()
		if txn.GetState() == ABORTED {
			// dibangunin karena diwound txn yang lebih tua
			return false
		}
	}

	request.granted = true
	return true
}

// LockExclusive. acquire X lock pada rid.
func (lm *LockManager) LockExclusive(txn *Transaction, rid types.RID) bool {
	if txn.GetState() == ABORTED {
		return false
	}

	if txn.GetState() != GROWING {
		txn.Abort(LOCK_ON_SHRINKING)
		return false
	}

	if txn.IsExclusiveLocked(rid) {
		return true
	}

	lm.latch.Lock()
	defer lm.latch.Unlock()

	queue := lm.getQueue(rid)
	request := &LockRequest{txnID: txn.GetID(), mode: EXCLUSIVE}
	queue.requests = append(queue.requests, request)
	txn.addExclusiveLock(rid)

	for lm.needWait(txn, queue, EXCLUSIVE) {
		queue.cv.Wait()
		if txn.GetState() == ABORTED {
			return false
		}
	}

	request.granted = true
	return true
}

// LockUpgrade. upgrade S lock yang sudah dihold jadi X. cuma satu upgrade per rid pada
// satu waktu, yang kedua di abort dengan UPGRADE_CONFLICT.
func (lm *LockManager) LockUpgrade(txn *Transaction, rid types.RID) bool {
	if txn.GetState() == ABORTED {
		return false
	}

	if txn.GetState() != GROWING {
		txn.Abort(LOCK_ON_SHRINKING)
		return false
	}

	if txn.IsExclusiveLocked(rid) {
		return true
	}

	lm.latch.Lock()
	defer lm.latch.Unlock()

	queue := lm.getQueue(rid)
	if queue.upgrading != types.InvalidTxnID && queue.upgrading != txn.GetID() {
		// txn lain lagi upgrade di rid yang sama
		txn.Abort(UPGRADE_CONFLICT)
		return false
	}
	queue.upgrading = txn.GetID()

	for lm.needWaitUpgrade(txn, queue) {
		queue.cv.Wait()
		if txn.GetState() == ABORTED {
			return false
		}
	}

	// rewrite S request jadi X, pindahin rid dari shared set ke exclusive set
	for _, request := range queue.requests {
		if request.txnID == txn.GetID() {
			request.mode = EXCLUSIVE
			request.granted = true
			break
		}
	}
	queue.upgrading = types.InvalidTxnID
	txn.removeLock(rid)
	txn.addExclusiveLock(rid)
	return true
}

// Unlock. release lock txn pada rid & bangunin semua waiter di queue. under
// REPEATABLE_READ unlock pertama transisi GROWING -> SHRINKING (2PL); under
// READ_COMMITTED S lock boleh dilepas tanpa keluar dari GROWING.
func (lm *LockManager) Unlock(txn *Transaction, rid types.RID) bool {
	if !txn.IsSharedLocked(rid) && !txn.IsExclusiveLocked(rid) {
		return false
	}

	lm.latch.Lock()
	defer lm.latch.Unlock()

	queue, ok := lm.lockTable[rid]
	if !ok {
		return false
	}

	if queue.upgrading == txn.GetID() {
		queue.upgrading = types.InvalidTxnID
	}

	found := false
	for i, request := range queue.requests {
		if request.txnID == txn.GetID() {
			found = true
			queue.requests = append(queue.requests[:i], queue.requests[i+1:]...)
			queue.cv.Broadcast()
			break
		}
	}
	if !found {
		return false
	}

	if txn.GetState() == GROWING && txn.GetIsolationLevel() == REPEATABLE_READ {
		txn.SetState(SHRINKING)
	}
	txn.removeLock(rid)
	return true
}

// needWait. grantable predicate + wound. scan request di depan kandidat: request yang
// conflict & lebih muda diwound (state nya diset ABORTED & queue dibroadcast biar waiter
// yang diabort bangun); kalau masih ada request lebih tua yang conflict, kandidat nunggu.
// caller harus hold lm.latch.
func (lm *LockManager) needWait(txn *Transaction, queue *LockRequestQueue, mode LockMode) bool {
	needWait := false
	hasAborted := false

	for _, request := range queue.requests {
		if request.txnID == txn.GetID() {
			break
		}

		if request.txnID > txn.GetID() {
			// request lebih muda. wound kalau conflict dengan mode kandidat.
			conflict := mode == EXCLUSIVE || request.mode == EXCLUSIVE
			if conflict {
				if younger := lm.getTxn(request.txnID); younger != nil &&
					younger.GetState() != ABORTED {
					lm.logger.WithFields(log.Fields{
						"txn":   txn.GetID(),
						"wound": request.txnID,
					}).Debug("wound-wait abort younger txn")
					younger.Abort(DEADLOCK)
					hasAborted = true
				}
			}
			continue
		}

		// request lebih tua: kandidat nunggu kalau conflict (S-S compatible, X conflict
		// dengan semuanya).
		if mode == EXCLUSIVE || request.mode == EXCLUSIVE {
			needWait = true
		}
	}

	if hasAborted {
		queue.cv.Broadcast()
	}

	return needWait
}

// needWaitUpgrade. versi upgrade dari needWait: skip S request milik kandidat sendiri,
// wound semua request lebih muda, nunggu kalau ada request lebih tua.
func (lm *LockManager) needWaitUpgrade(txn *Transaction, queue *LockRequestQueue) bool {
	needWait := false
	hasAborted := false

	for _, request := range queue.requests {
		if request.txnID == txn.GetID() {
			continue
		}

		if request.txnID > txn.GetID() {
			if younger := lm.getTxn(request.txnID); younger != nil &&
				younger.GetState() != ABORTED {
				younger.Abort(DEADLOCK)
				hasAborted = true
			}
			continue
		}

		needWait = true
	}

	if hasAborted {
		queue.cv.Broadcast()
	}

	return needWait
}
