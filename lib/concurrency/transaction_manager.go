package concurrency

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/lintang-b-s/lintangdb/types"
)

type LogManager interface {
	Append(record []byte) (types.LSN, error)
	Flush(lsn types.LSN) error
}

// log record types buat begin/commit/abort. cuma append + iterate, tidak ada replay.
const (
	logRecordBegin  = byte(1)
	logRecordCommit = byte(2)
	logRecordAbort  = byte(3)
)

// TransactionManager. issue txn id monoton & manage lifecycle transaksi
// (Begin -> Commit/Abort). terminal state (COMMITTED/ABORTED) cuma diset di sini.
type TransactionManager struct {
	nextTxnID    types.TxnID
	transactions map[types.TxnID]*Transaction
	latch        sync.Mutex

	lockManager *LockManager
	logManager  LogManager
	logger      *log.Logger
}

func NewTransactionManager(lockManager *LockManager, logManager LogManager,
	logger *log.Logger) *TransactionManager {
	tm := &TransactionManager{
		transactions: make(map[types.TxnID]*Transaction),
		lockManager:  lockManager,
		logManager:   logManager,
		logger:       logger,
	}
	lockManager.getTxn = tm.GetTransaction
	return tm
}

// Begin. create transaksi baru dengan state GROWING.
func (tm *TransactionManager) Begin(isolation IsolationLevel) *Transaction {
	tm.latch.Lock()
	txnID := tm.nextTxnID
	tm.nextTxnID++
	txn := NewTransaction(txnID, isolation)
	tm.transactions[txnID] = txn
	tm.latch.Unlock()

	tm.appendTxnRecord(txn, logRecordBegin)
	return txn
}

func (tm *TransactionManager) GetTransaction(txnID types.TxnID) *Transaction {
	tm.latch.Lock()
	defer tm.latch.Unlock()
	return tm.transactions[txnID]
}

// Commit. release semua lock & set state COMMITTED. commit record diflush ke log.
func (tm *TransactionManager) Commit(txn *Transaction) {
	tm.releaseAllLocks(txn)
	txn.SetState(COMMITTED)

	lsn := tm.appendTxnRecord(txn, logRecordCommit)
	if lsn != types.InvalidLSN {
		tm.logManager.Flush(lsn)
	}
}

// Abort. release semua lock & set state ABORTED (kalau belum, misal karena diwound).
func (tm *TransactionManager) Abort(txn *Transaction) {
	tm.releaseAllLocks(txn)
	if txn.GetState() != ABORTED {
		txn.Abort(ABORT_REASON_NONE)
	}

	tm.appendTxnRecord(txn, logRecordAbort)
	tm.logger.WithFields(log.Fields{
		"txn":    txn.GetID(),
		"reason": txn.GetAbortReason().String(),
	}).Debug("transaction aborted")
}

// releaseAllLocks. unlock semua rid yang dihold txn. request milik txn yang diwound juga
// dibersihin dari queue di sini & waiter lain dinotify.
func (tm *TransactionManager) releaseAllLocks(txn *Transaction) {
	// dipanggil Commit/Abort sebelum state terminal diset: txn REPEATABLE_READ yang masih
	// GROWING dipindah ke SHRINKING oleh Unlock di sini, lalu Commit/Abort menimpanya
	// dengan COMMITTED/ABORTED.
	for _, rid := range txn.GetLockedRIDs() {
		tm.lockManager.Unlock(txn, rid)
	}
}

func (tm *TransactionManager) appendTxnRecord(txn *Transaction, kind byte) types.LSN {
	if tm.logManager == nil {
		return types.InvalidLSN
	}

	record := make([]byte, 5)
	record[0] = kind
	record[1] = byte(txn.GetID())
	record[2] = byte(txn.GetID() >> 8)
	record[3] = byte(txn.GetID() >> 16)
	record[4] = byte(txn.GetID() >> 24)

	lsn, err := tm.logManager.Append(record)
	if err != nil {
		tm.logger.Errorf("append txn log record: %v", err)
		return types.InvalidLSN
	}
	txn.SetPrevLSN(lsn)
	return lsn
}
