package buffer

import (
	"sync"

	"github.com/lintang-b-s/lintangdb/types"
)

type ListNode struct {
	Key  types.FrameID
	next *ListNode
	prev *ListNode
}

func NewListNode(key types.FrameID, next, prev *ListNode) *ListNode {
	return &ListNode{Key: key, next: next, prev: prev}
}

type DoubleLinkedList struct {
	head *ListNode // most recently unpinned
	tail *ListNode // least recently unpinned
}

// null <--> head <-> tail <-> null
//
//	-> next
//	<- prev
func NewDoubleLinkedList() *DoubleLinkedList {
	head := NewListNode(-1, nil, nil)
	tail := NewListNode(-1, nil, nil)
	head.next = tail
	tail.prev = head

	return &DoubleLinkedList{head: head, tail: tail}
}

func (d *DoubleLinkedList) Remove(node *ListNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
}

// PushFront. push ke nextnya head. node paling front adalah node most recently unpinned.
func (d *DoubleLinkedList) PushFront(val types.FrameID) *ListNode {
	newNode := NewListNode(val, nil, nil)

	nextFrontNode := d.head

	d.head.next.prev = newNode
	newNode.next = d.head.next

	newNode.prev = nextFrontNode
	nextFrontNode.next = newNode

	return newNode
}

// GetBack. return node prevnya tail. node ini adalah node least recently unpinned.
func (d *DoubleLinkedList) GetBack() *ListNode {
	return d.tail.prev
}

// LRUReplacer. remember frame yang unpinned & pilih frame paling stale buat dievict
// dari buffer pool. semua operasi O(1) (doubly linked list + map frame -> node).
type LRUReplacer struct {
	mu       sync.Mutex
	capacity int
	lst      *DoubleLinkedList
	index    map[types.FrameID]*ListNode
}

func NewLRUReplacer(capacity int) *LRUReplacer {
	return &LRUReplacer{
		capacity: capacity,
		lst:      NewDoubleLinkedList(),
		index:    make(map[types.FrameID]*ListNode),
	}
}

// Unpin. marks a frame as unpinned, making it eligible for eviction dari LRU.
// no-op kalau frame sudah ada di list.
func (lru *LRUReplacer) Unpin(frameID types.FrameID) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if len(lru.index) >= lru.capacity {
		return
	}

	if _, ok := lru.index[frameID]; ok {
		// already in the list
		return
	}

	elem := lru.lst.PushFront(frameID) // most recently unpinned
	lru.index[frameID] = elem
}

// Size. return jumlah frame dalam LRU.
func (lru *LRUReplacer) Size() int {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	return len(lru.index)
}

// Pin marks a frame as pinned. buat frame jadi ineligible for eviction dari LRU.
func (lru *LRUReplacer) Pin(frameID types.FrameID) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if elem, ok := lru.index[frameID]; ok {
		lru.lst.Remove(elem)       // remove from list
		delete(lru.index, frameID) // remove from index
	}
}

// Victim. remove & return frame yang paling lama unpinned (prevnya tail).
// return false kalau tidak ada frame yang bisa dievict.
func (lru *LRUReplacer) Victim(frameID *types.FrameID) bool {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if len(lru.index) == 0 {
		return false
	}

	backElem := lru.lst.GetBack() // least recently unpinned

	val := backElem.Key

	lru.lst.Remove(backElem)
	if _, ok := lru.index[val]; !ok {
		return false
	}

	*frameID = val
	delete(lru.index, val)
	return true
}
