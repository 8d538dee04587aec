package index

import (
	"fmt"
	"os"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/lib/buffer"
	"github.com/lintang-b-s/lintangdb/lib/concurrency"
	"github.com/lintang-b-s/lintangdb/types"
)

// BufferPoolManager. semua akses page btree lewat interface ini (single instance atau
// parallel pool, dua-duanya implement).
type BufferPoolManager interface {
	NewPage() (*buffer.Frame, error)
	FetchPage(pageID types.PageID) (*buffer.Frame, error)
	UnpinPage(pageID types.PageID, isDirty bool) bool
	DeletePage(pageID types.PageID) bool
	FlushPage(pageID types.PageID) bool
}

type Operation int

const (
	FIND Operation = iota
	INSERT
	DELETE
)

/*
BPlusTree. disk-resident b+tree yang semua pagenya dimanage lewat buffer pool. key int64
(total order dari comparator yang diinject), value types.RID. internal node nyimpan
(key_i, childPageID_i) dengan key_0 dummy, leaf nyimpan sorted (key, rid) & di chain
lewat next pointer.

concurrency pakai latch crabbing: descent dari root ambil latch per page (read buat FIND,
write buat INSERT/DELETE); write latch ancestor dicatat di transaction & baru dilepas
semua sekaligus begitu child terbukti safe (insert gak bakal bikin split / delete gak
bakal bikin underflow). rootLatch nge-guard rootPageID; root page id juga dipersist di
header page (page 0) under nama index.
*/
type BPlusTree struct {
	indexName       string
	rootPageID      types.PageID
	bpm             BufferPoolManager
	comparator      KeyComparator
	leafMaxSize     int
	internalMaxSize int

	rootLatch sync.Mutex
	logger    *log.Logger
}

func NewBPlusTree(indexName string, bpm BufferPoolManager, comparator KeyComparator,
	leafMaxSize, internalMaxSize int, logger *log.Logger) (*BPlusTree, error) {
	tree := &BPlusTree{
		indexName:       indexName,
		rootPageID:      types.InvalidPageID,
		bpm:             bpm,
		comparator:      comparator,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		logger:          logger,
	}

	// baca root page id dari header page kalau index ini sudah pernah dibuat.
	headerFrame, err := bpm.FetchPage(lib.HEADER_PAGE_ID)
	if err != nil {
		return nil, fmt.Errorf("fetch header page: %w", err)
	}
	header := NewHeaderPage(headerFrame.Contents())
	if rootPageID, ok := header.GetRootId(indexName); ok {
		tree.rootPageID = rootPageID
		bpm.UnpinPage(lib.HEADER_PAGE_ID, false)
	} else {
		header.InsertRecord(indexName, types.InvalidPageID)
		bpm.UnpinPage(lib.HEADER_PAGE_ID, true)
	}

	return tree, nil
}

func (t *BPlusTree) IsEmpty() bool {
	return t.rootPageID == types.InvalidPageID
}

// GetRootPageID. buat test & inspect.
func (t *BPlusTree) GetRootPageID() types.PageID {
	t.rootLatch.Lock()
	defer t.rootLatch.Unlock()
	return t.rootPageID
}

// updateRootPageID. persist rootPageID ke header page. harus dipanggil tiap rootPageID
// berubah, masih di dalam rootLatch.
func (t *BPlusTree) updateRootPageID() {
	headerFrame, err := t.bpm.FetchPage(lib.HEADER_PAGE_ID)
	if err != nil {
		t.logger.Errorf("fetch header page: %v", err)
		return
	}
	header := NewHeaderPage(headerFrame.Contents())
	if !header.UpdateRecord(t.indexName, t.rootPageID) {
		header.InsertRecord(t.indexName, t.rootPageID)
	}
	t.bpm.UnpinPage(lib.HEADER_PAGE_ID, true)
}

// isSafe. node safe kalau operasi di descendant gak mungkin propagate ke atas node ini:
// insert gak bikin split (size < max-1), delete gak bikin underflow (size > min;
// root: size > 2 buat delete).
func (t *BPlusTree) isSafe(node *BTreePage, op Operation) bool {
	if node.IsRootPage() {
		if op == INSERT {
			return node.GetSize() < node.GetMaxSize()-1
		}
		return node.GetSize() > 2
	}

	if op == INSERT {
		return node.GetSize() < node.GetMaxSize()-1
	}
	return node.GetSize() > node.GetMinSize()
}

// unlatchUnpinAncestors. release semua ancestor write latch yang dicatat di transaction
// & unpin pagenya, sekali jalan.
func (t *BPlusTree) unlatchUnpinAncestors(txn *concurrency.Transaction) {
	for _, frame := range txn.GetPageSet() {
		frame.WUnlatch()
		t.bpm.UnpinPage(frame.GetPageID(), false)
	}
	txn.ClearPageSet()
}

// releaseRootLatch. release rootLatch kalau masih dipegang descent ini.
func (t *BPlusTree) releaseRootLatch(rootLatched *bool) {
	if *rootLatched {
		*rootLatched = false
		t.rootLatch.Unlock()
	}
}

/*
findLeafPage. descent dari root ke leaf yang nyimpan key, dengan latch crabbing sesuai
operation. FIND: read latch child dulu, langsung release parent. INSERT/DELETE: write
latch, parent dicatat di transaction & baru direlease begitu child safe. return frame
leaf (masih dilatch & dipin) + apakah rootLatch masih dipegang.
*/
func (t *BPlusTree) findLeafPage(key int64, op Operation, txn *concurrency.Transaction,
	leftMost, rightMost bool) (*buffer.Frame, bool, error) {
	t.rootLatch.Lock()
	rootLatched := true

	if t.rootPageID == types.InvalidPageID {
		t.rootLatch.Unlock()
		return nil, false, nil
	}

	frame, err := t.bpm.FetchPage(t.rootPageID)
	if err != nil {
		t.rootLatch.Unlock()
		return nil, false, err
	}
	node := AsBTreePage(frame.Contents())

	if op == FIND {
		frame.RLatch()
		rootLatched = false
		t.rootLatch.Unlock()
	} else {
		frame.WLatch()
		if t.isSafe(node, op) {
			rootLatched = false
			t.rootLatch.Unlock()
		}
	}

	for !node.IsLeafPage() {
		internal := AsInternalPage(frame.Contents())

		var childPageID types.PageID
		if leftMost {
			childPageID = internal.ValueAt(0)
		} else if rightMost {
			childPageID = internal.ValueAt(internal.GetSize() - 1)
		} else {
			childPageID = internal.Lookup(key, t.comparator)
		}

		childFrame, err := t.bpm.FetchPage(childPageID)
		if err != nil {
			if op == FIND {
				frame.RUnlatch()
				t.bpm.UnpinPage(frame.GetPageID(), false)
			} else {
				t.releaseRootLatch(&rootLatched)
				frame.WUnlatch()
				t.bpm.UnpinPage(frame.GetPageID(), false)
				t.unlatchUnpinAncestors(txn)
			}
			return nil, false, err
		}
		childNode := AsBTreePage(childFrame.Contents())

		if op == FIND {
			childFrame.RLatch()
			frame.RUnlatch()
			t.bpm.UnpinPage(frame.GetPageID(), false)
		} else {
			childFrame.WLatch()
			txn.AddIntoPageSet(frame)
			// child safe, release semua ancestor latch
			if t.isSafe(childNode, op) {
				t.releaseRootLatch(&rootLatched)
				t.unlatchUnpinAncestors(txn)
			}
		}

		frame = childFrame
		node = childNode
	}

	return frame, rootLatched, nil
}

// GetValue. point lookup.
func (t *BPlusTree) GetValue(key int64) (types.RID, bool) {
	frame, _, err := t.findLeafPage(key, FIND, nil, false, false)
	if err != nil || frame == nil {
		return types.RID{}, false
	}

	leaf := AsLeafPage(frame.Contents())
	rid, ok := leaf.Lookup(key, t.comparator)

	frame.RUnlatch()
	t.bpm.UnpinPage(frame.GetPageID(), false)
	return rid, ok
}

// Insert. insert (key, rid). false kalau key sudah ada (tree tidak dimutate; client yang
// butuh upsert harus delete dulu baru insert).
func (t *BPlusTree) Insert(key int64, rid types.RID, txn *concurrency.Transaction) (bool, error) {
	if txn == nil {
		txn = concurrency.NewTransaction(types.InvalidTxnID, concurrency.REPEATABLE_READ)
	}

	t.rootLatch.Lock()
	if t.IsEmpty() {
		err := t.startNewTree(key, rid)
		t.rootLatch.Unlock()
		return err == nil, err
	}
	t.rootLatch.Unlock()

	return t.insertIntoLeaf(key, rid, txn)
}

// startNewTree. tree kosong: alokasikan leaf pertama sebagai root. caller harus hold
// rootLatch.
func (t *BPlusTree) startNewTree(key int64, rid types.RID) error {
	frame, err := t.bpm.NewPage()
	if err != nil {
		return fmt.Errorf("btree out of memory: %w", err)
	}

	t.rootPageID = frame.GetPageID()
	t.updateRootPageID()

	root := AsLeafPage(frame.Contents())
	root.Init(frame.GetPageID(), types.InvalidPageID, t.leafMaxSize)
	root.Insert(key, rid, t.comparator)

	t.bpm.UnpinPage(frame.GetPageID(), true)
	return nil
}

func (t *BPlusTree) insertIntoLeaf(key int64, rid types.RID, txn *concurrency.Transaction) (bool, error) {
	frame, rootLatched, err := t.findLeafPage(key, INSERT, txn, false, false)
	if err != nil {
		return false, err
	}
	if frame == nil {
		// tree keburu kosong lagi, mulai dari awal
		return t.Insert(key, rid, txn)
	}

	leaf := AsLeafPage(frame.Contents())

	size := leaf.GetSize()
	newSize := leaf.Insert(key, rid, t.comparator)

	if newSize == size {
		// duplicate key
		t.releaseRootLatch(&rootLatched)
		t.unlatchUnpinAncestors(txn)
		frame.WUnlatch()
		t.bpm.UnpinPage(frame.GetPageID(), false)
		return false, nil
	}

	if newSize < leaf.GetMaxSize() {
		t.releaseRootLatch(&rootLatched)
		t.unlatchUnpinAncestors(txn)
		frame.WUnlatch()
		t.bpm.UnpinPage(frame.GetPageID(), true)
		return true, nil
	}

	// leaf penuh, split
	siblingFrame, err := t.splitLeaf(leaf)
	if err != nil {
		t.releaseRootLatch(&rootLatched)
		t.unlatchUnpinAncestors(txn)
		frame.WUnlatch()
		t.bpm.UnpinPage(frame.GetPageID(), true)
		return false, err
	}
	sibling := AsLeafPage(siblingFrame.Contents())

	err = t.insertIntoParent(&leaf.BTreePage, sibling.KeyAt(0), &sibling.BTreePage, txn, &rootLatched)

	frame.WUnlatch()
	t.bpm.UnpinPage(frame.GetPageID(), true)
	t.bpm.UnpinPage(siblingFrame.GetPageID(), true)
	if err != nil {
		return false, err
	}
	return true, nil
}

// splitLeaf. alokasikan sibling kanan baru, pindahin upper half entries ke sana & relink
// next pointer.
func (t *BPlusTree) splitLeaf(leaf *LeafPage) (*buffer.Frame, error) {
	frame, err := t.bpm.NewPage()
	if err != nil {
		return nil, fmt.Errorf("btree out of memory: %w", err)
	}

	sibling := AsLeafPage(frame.Contents())
	sibling.Init(frame.GetPageID(), leaf.GetParentPageID(), t.leafMaxSize)

	leaf.MoveHalfTo(sibling)
	sibling.SetNextPageID(leaf.GetNextPageID())
	leaf.SetNextPageID(sibling.GetPageID())

	t.logger.WithFields(log.Fields{"leaf": leaf.GetPageID(), "sibling": sibling.GetPageID()}).
		Debug("split leaf")
	return frame, nil
}

// splitInternal. split internal node: upper half entries pindah ke sibling, parent id
// semua child yang pindah di rewrite.
func (t *BPlusTree) splitInternal(node *InternalPage) (*buffer.Frame, error) {
	frame, err := t.bpm.NewPage()
	if err != nil {
		return nil, fmt.Errorf("btree out of memory: %w", err)
	}

	sibling := AsInternalPage(frame.Contents())
	sibling.Init(frame.GetPageID(), node.GetParentPageID(), t.internalMaxSize)

	node.MoveHalfTo(sibling, t.updateChildParent)
	return frame, nil
}

// updateChildParent. rewrite parent back-pointer dari child yang pindah node. parent
// back-pointer itu lookup shortcut, bukan ownership: harus diupdate tiap child ganti
// parent.
func (t *BPlusTree) updateChildParent(child types.PageID, newParent types.PageID) {
	frame, err := t.bpm.FetchPage(child)
	if err != nil {
		t.logger.Errorf("fetch child %d: %v", child, err)
		return
	}
	AsBTreePage(frame.Contents()).SetParentPageID(newParent)
	t.bpm.UnpinPage(child, true)
}

/*
insertIntoParent. propagate split ke atas: insert (key, newNode) ke parent dari oldNode.
kalau oldNode root, bikin root internal baru dengan dua child. parent yang overflow displit
lagi & rekursi.
*/
func (t *BPlusTree) insertIntoParent(oldNode *BTreePage, key int64, newNode *BTreePage,
	txn *concurrency.Transaction, rootLatched *bool) error {

	if oldNode.IsRootPage() {
		frame, err := t.bpm.NewPage()
		if err != nil {
			t.releaseRootLatch(rootLatched)
			t.unlatchUnpinAncestors(txn)
			return fmt.Errorf("btree out of memory: %w", err)
		}

		newRoot := AsInternalPage(frame.Contents())
		newRoot.Init(frame.GetPageID(), types.InvalidPageID, t.internalMaxSize)
		newRoot.PopulateNewRoot(oldNode.GetPageID(), key, newNode.GetPageID())
		oldNode.SetParentPageID(frame.GetPageID())
		newNode.SetParentPageID(frame.GetPageID())

		t.rootPageID = frame.GetPageID()
		t.updateRootPageID()
		t.bpm.UnpinPage(frame.GetPageID(), true)

		t.releaseRootLatch(rootLatched)
		t.unlatchUnpinAncestors(txn)
		return nil
	}

	// parent sudah di write latch lewat page set descent, tinggal fetch buat dapet
	// kontennya.
	parentFrame, err := t.bpm.FetchPage(oldNode.GetParentPageID())
	if err != nil {
		t.releaseRootLatch(rootLatched)
		t.unlatchUnpinAncestors(txn)
		return err
	}
	parent := AsInternalPage(parentFrame.Contents())

	newSize := parent.InsertNodeAfter(oldNode.GetPageID(), key, newNode.GetPageID())

	if newSize < parent.GetMaxSize() {
		t.releaseRootLatch(rootLatched)
		t.unlatchUnpinAncestors(txn)
		t.bpm.UnpinPage(parentFrame.GetPageID(), true)
		return nil
	}

	// parent juga penuh, split lagi & propagate.
	siblingFrame, err := t.splitInternal(parent)
	if err != nil {
		t.releaseRootLatch(rootLatched)
		t.unlatchUnpinAncestors(txn)
		t.bpm.UnpinPage(parentFrame.GetPageID(), true)
		return err
	}
	sibling := AsInternalPage(siblingFrame.Contents())

	err = t.insertIntoParent(&parent.BTreePage, sibling.KeyAt(0), &sibling.BTreePage, txn, rootLatched)

	t.bpm.UnpinPage(parentFrame.GetPageID(), true)
	t.bpm.UnpinPage(siblingFrame.GetPageID(), true)
	return err
}

// Remove. hapus key dari tree. no-op kalau key tidak ada.
func (t *BPlusTree) Remove(key int64, txn *concurrency.Transaction) error {
	if txn == nil {
		txn = concurrency.NewTransaction(types.InvalidTxnID, concurrency.REPEATABLE_READ)
	}

	frame, rootLatched, err := t.findLeafPage(key, DELETE, txn, false, false)
	if err != nil {
		return err
	}
	if frame == nil {
		return nil
	}

	leaf := AsLeafPage(frame.Contents())
	oldSize := leaf.GetSize()
	newSize := leaf.RemoveAndDeleteRecord(key, t.comparator)

	if newSize == oldSize {
		// key tidak ada
		t.releaseRootLatch(&rootLatched)
		t.unlatchUnpinAncestors(txn)
		frame.WUnlatch()
		t.bpm.UnpinPage(frame.GetPageID(), false)
		return nil
	}

	if err := t.coalesceOrRedistribute(&leaf.BTreePage, txn, &rootLatched); err != nil {
		frame.WUnlatch()
		t.bpm.UnpinPage(frame.GetPageID(), true)
		return err
	}

	frame.WUnlatch()
	t.bpm.UnpinPage(frame.GetPageID(), true)

	// page yang jadi kosong karena merge dihapus setelah semua latch dilepas.
	for _, pageID := range txn.GetDeletedPageSet() {
		t.bpm.DeletePage(pageID)
	}
	txn.ClearDeletedPageSet()
	return nil
}

/*
coalesceOrRedistribute. handle underflow pada node setelah delete. pilih sibling lewat
child array parent (prefer sibling kiri; node paling kiri pakai sibling kanan). kalau
gabungan size masih >= max, redistribute satu entry & rewrite separator parent. kalau
tidak, merge ke node kiri, hapus separator di parent & rekursi ke parent. node yang
dikosongkan dicatat di deleted page set transaction.
*/
func (t *BPlusTree) coalesceOrRedistribute(node *BTreePage,
	txn *concurrency.Transaction, rootLatched *bool) error {

	if node.IsRootPage() {
		t.adjustRoot(node, txn)
		t.releaseRootLatch(rootLatched)
		t.unlatchUnpinAncestors(txn)
		return nil
	}

	if node.GetSize() >= node.GetMinSize() {
		t.releaseRootLatch(rootLatched)
		t.unlatchUnpinAncestors(txn)
		return nil
	}

	parentFrame, err := t.bpm.FetchPage(node.GetParentPageID())
	if err != nil {
		t.releaseRootLatch(rootLatched)
		t.unlatchUnpinAncestors(txn)
		return err
	}
	parent := AsInternalPage(parentFrame.Contents())

	index := parent.ValueIndex(node.GetPageID())
	lib.Assert(index != -1, "parent %d has no child %d", parent.GetPageID(), node.GetPageID())

	siblingIndex := index - 1
	if index == 0 {
		siblingIndex = 1
	}
	siblingFrame, err := t.bpm.FetchPage(parent.ValueAt(siblingIndex))
	if err != nil {
		t.releaseRootLatch(rootLatched)
		t.unlatchUnpinAncestors(txn)
		t.bpm.UnpinPage(parentFrame.GetPageID(), false)
		return err
	}
	siblingFrame.WLatch()
	sibling := AsBTreePage(siblingFrame.Contents())

	if node.GetSize()+sibling.GetSize() >= node.GetMaxSize() {
		t.releaseRootLatch(rootLatched)
		t.redistribute(sibling, node, parent, index)

		t.unlatchUnpinAncestors(txn)
		t.bpm.UnpinPage(parentFrame.GetPageID(), true)
		siblingFrame.WUnlatch()
		t.bpm.UnpinPage(siblingFrame.GetPageID(), true)
		return nil
	}

	err = t.coalesce(sibling, node, parent, index, txn, rootLatched)

	t.bpm.UnpinPage(parentFrame.GetPageID(), true)
	siblingFrame.WUnlatch()
	t.bpm.UnpinPage(siblingFrame.GetPageID(), true)
	return err
}

// coalesce. merge node & sibling jadi satu (yang kanan pindah ke yang kiri), hapus
// separator di parent, lalu cek underflow parent secara rekursif.
func (t *BPlusTree) coalesce(sibling *BTreePage, node *BTreePage, parent *InternalPage,
	index int, txn *concurrency.Transaction, rootLatched *bool) error {

	keyIndex := index
	if index == 0 {
		// node paling kiri: sibling kanan yang dimerge ke node.
		sibling, node = node, sibling
		keyIndex = 1
	}
	middleKey := parent.KeyAt(keyIndex)

	// node (kanan) dituang ke sibling (kiri); node jadi kosong & dihapus.
	if node.IsLeafPage() {
		leafNode := &LeafPage{*node}
		leafSibling := &LeafPage{*sibling}
		leafNode.MoveAllTo(leafSibling)
	} else {
		internalNode := &InternalPage{*node}
		internalSibling := &InternalPage{*sibling}
		internalNode.MoveAllTo(internalSibling, middleKey, t.updateChildParent)
	}
	txn.AddIntoDeletedPageSet(node.GetPageID())
	t.logger.WithFields(log.Fields{"merged": node.GetPageID(), "into": sibling.GetPageID()}).
		Debug("coalesce")

	parent.Remove(keyIndex)

	return t.coalesceOrRedistribute(&parent.BTreePage, txn, rootLatched)
}

// redistribute. pinjam satu entry dari sibling & rewrite separator parent sesuai boundary
// baru.
func (t *BPlusTree) redistribute(sibling *BTreePage, node *BTreePage, parent *InternalPage, index int) {
	if node.IsLeafPage() {
		leafNode := &LeafPage{*node}
		leafSibling := &LeafPage{*sibling}
		if index == 0 {
			// sibling di kanan: entry pertamanya pindah ke akhir node.
			leafSibling.MoveFirstToEndOf(leafNode)
			parent.SetKeyAt(1, leafSibling.KeyAt(0))
		} else {
			// sibling di kiri: entry terakhirnya pindah ke depan node.
			leafSibling.MoveLastToFrontOf(leafNode)
			parent.SetKeyAt(index, leafNode.KeyAt(0))
		}
	} else {
		internalNode := &InternalPage{*node}
		internalSibling := &InternalPage{*sibling}
		if index == 0 {
			internalSibling.MoveFirstToEndOf(internalNode, parent.KeyAt(1), t.updateChildParent)
			parent.SetKeyAt(1, internalSibling.KeyAt(0))
		} else {
			internalSibling.MoveLastToFrontOf(internalNode, parent.KeyAt(index), t.updateChildParent)
			parent.SetKeyAt(index, internalNode.KeyAt(0))
		}
	}
}

// adjustRoot. root internal yang tinggal satu child: promote child jadi root baru. root
// leaf yang kosong: tree jadi empty.
func (t *BPlusTree) adjustRoot(oldRoot *BTreePage, txn *concurrency.Transaction) {
	if !oldRoot.IsLeafPage() && oldRoot.GetSize() == 1 {
		internal := &InternalPage{*oldRoot}
		childPageID := internal.RemoveAndReturnOnlyChild()

		t.rootPageID = childPageID
		t.updateRootPageID()

		childFrame, err := t.bpm.FetchPage(childPageID)
		if err != nil {
			t.logger.Errorf("fetch new root %d: %v", childPageID, err)
			return
		}
		AsBTreePage(childFrame.Contents()).SetParentPageID(types.InvalidPageID)
		t.bpm.UnpinPage(childPageID, true)

		txn.AddIntoDeletedPageSet(oldRoot.GetPageID())
		return
	}

	if oldRoot.IsLeafPage() && oldRoot.GetSize() == 0 {
		t.rootPageID = types.InvalidPageID
		t.updateRootPageID()
		txn.AddIntoDeletedPageSet(oldRoot.GetPageID())
	}
}

// InsertFromFile. bulk helper buat test & seeding: baca key int64 per baris dari file &
// insert satu-satu (rid diderive dari key).
func (t *BPlusTree) InsertFromFile(fileName string, txn *concurrency.Transaction) error {
	f, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer f.Close()

	var key int64
	for {
		if _, err := fmt.Fscan(f, &key); err != nil {
			return nil
		}
		rid := types.NewRID(types.PageID(key), types.SlotNum(key))
		if _, err := t.Insert(key, rid, txn); err != nil {
			return err
		}
	}
}

// RemoveFromFile. bulk helper: baca key int64 per baris dari file & remove satu-satu.
func (t *BPlusTree) RemoveFromFile(fileName string, txn *concurrency.Transaction) error {
	f, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer f.Close()

	var key int64
	for {
		if _, err := fmt.Fscan(f, &key); err != nil {
			return nil
		}
		if err := t.Remove(key, txn); err != nil {
			return err
		}
	}
}
