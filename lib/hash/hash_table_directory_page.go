package hash

import (
	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/types"
)

// MAX_DEPTH. batas atas global depth. directory array disize 2^MAX_DEPTH biar muat di
// satu page.
const MAX_DEPTH = 9

const DIRECTORY_ARRAY_SIZE = 1 << MAX_DEPTH

// DirectoryPage. directory extendible hash: global depth g mengalamatkan 2^g logical
// slot, tiap slot nyimpan bucket page id + local depth d_i <= g. semua slot yang low-d_i
// bitnya sama nunjuk ke bucket yang sama.
//
// layout: | pageID (4) | globalDepth (4) | localDepths (DIRECTORY_ARRAY_SIZE bytes)
//         | bucketPageIDs (DIRECTORY_ARRAY_SIZE * 4) |
type DirectoryPage struct {
	page *disk.Page
}

const (
	offsetDirPageID     = 0
	offsetGlobalDepth   = 4
	offsetLocalDepths   = 8
	offsetBucketPageIDs = offsetLocalDepths + DIRECTORY_ARRAY_SIZE
)

func AsDirectoryPage(page *disk.Page) *DirectoryPage {
	return &DirectoryPage{page: page}
}

func (dp *DirectoryPage) Init(pageID types.PageID) {
	dp.page.PutInt(offsetDirPageID, int32(pageID))
	dp.page.PutInt(offsetGlobalDepth, 0)
	for i := uint32(0); i < DIRECTORY_ARRAY_SIZE; i++ {
		dp.SetLocalDepth(i, 0)
		dp.SetBucketPageID(i, types.InvalidPageID)
	}
}

func (dp *DirectoryPage) GetPageID() types.PageID {
	return types.PageID(dp.page.GetInt(offsetDirPageID))
}

func (dp *DirectoryPage) GetGlobalDepth() uint32 {
	return dp.page.GetUint32(offsetGlobalDepth)
}

// GetGlobalDepthMask. low-g bit mask buat mapping hash -> directory slot.
func (dp *DirectoryPage) GetGlobalDepthMask() uint32 {
	return (1 << dp.GetGlobalDepth()) - 1
}

func (dp *DirectoryPage) GetLocalDepthMask(index uint32) uint32 {
	return (1 << dp.GetLocalDepth(index)) - 1
}

// Size. jumlah logical slot yang sekarang addressable (2^g).
func (dp *DirectoryPage) Size() uint32 {
	return 1 << dp.GetGlobalDepth()
}

// IncrGlobalDepth. double directory secara logical: entries [0, 2^g) dicopy ke
// [2^g, 2^(g+1)).
func (dp *DirectoryPage) IncrGlobalDepth() {
	g := dp.GetGlobalDepth()
	lib.Assert(g < MAX_DEPTH, "directory already at max depth %d", MAX_DEPTH)

	size := uint32(1) << g
	for i := uint32(0); i < size; i++ {
		dp.SetBucketPageID(size+i, dp.GetBucketPageID(i))
		dp.SetLocalDepth(size+i, dp.GetLocalDepth(i))
	}
	dp.page.PutUint32(offsetGlobalDepth, g+1)
}

func (dp *DirectoryPage) DecrGlobalDepth() {
	g := dp.GetGlobalDepth()
	lib.Assert(g > 0, "directory global depth already 0")
	dp.page.PutUint32(offsetGlobalDepth, g-1)
}

// CanShrink. directory boleh dishrink kalau semua local depth < global depth.
func (dp *DirectoryPage) CanShrink() bool {
	g := dp.GetGlobalDepth()
	if g == 0 {
		return false
	}
	for i := uint32(0); i < dp.Size(); i++ {
		if dp.GetLocalDepth(i) == g {
			return false
		}
	}
	return true
}

func (dp *DirectoryPage) GetLocalDepth(index uint32) uint32 {
	return uint32(dp.page.Contents()[offsetLocalDepths+int(index)])
}

func (dp *DirectoryPage) SetLocalDepth(index uint32, depth uint32) {
	dp.page.Contents()[offsetLocalDepths+int(index)] = byte(depth)
}

func (dp *DirectoryPage) IncrLocalDepth(index uint32) {
	dp.SetLocalDepth(index, dp.GetLocalDepth(index)+1)
}

func (dp *DirectoryPage) DecrLocalDepth(index uint32) {
	dp.SetLocalDepth(index, dp.GetLocalDepth(index)-1)
}

func (dp *DirectoryPage) GetBucketPageID(index uint32) types.PageID {
	return types.PageID(dp.page.GetInt(offsetBucketPageIDs + int32(index)*4))
}

func (dp *DirectoryPage) SetBucketPageID(index uint32, pageID types.PageID) {
	dp.page.PutInt(offsetBucketPageIDs+int32(index)*4, int32(pageID))
}

// GetSplitImageIndex. slot image dari index: flip bit tertinggi di dalam local depth nya.
func (dp *DirectoryPage) GetSplitImageIndex(index uint32) uint32 {
	d := dp.GetLocalDepth(index)
	lib.Assert(d > 0, "slot %d with local depth 0 has no split image", index)
	return index ^ (1 << (d - 1))
}

// VerifyIntegrity. cek invariant directory: local depth <= global depth; semua slot yang
// low-d_i bitnya sama nunjuk ke bucket yang sama (dan sebaliknya); slot yang share bucket
// punya local depth yang sama.
func (dp *DirectoryPage) VerifyIntegrity() {
	g := dp.GetGlobalDepth()
	size := dp.Size()

	pageIDDepth := make(map[types.PageID]uint32)
	for i := uint32(0); i < size; i++ {
		d := dp.GetLocalDepth(i)
		lib.Assert(d <= g, "slot %d local depth %d > global depth %d", i, d, g)

		pid := dp.GetBucketPageID(i)
		if prev, ok := pageIDDepth[pid]; ok {
			lib.Assert(prev == d, "bucket %d referenced with local depths %d and %d", pid, prev, d)
		} else {
			pageIDDepth[pid] = d
		}

		for j := uint32(0); j < size; j++ {
			sameLowBits := (i & dp.GetLocalDepthMask(i)) == (j & dp.GetLocalDepthMask(i))
			samePid := dp.GetBucketPageID(j) == pid
			lib.Assert(sameLowBits == samePid,
				"slot %d and %d: low bits agreement %v but bucket agreement %v", i, j, sameLowBits, samePid)
		}
	}
}
