package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lintang-b-s/lintangdb/types"
)

func TestLRUReplacer(t *testing.T) {
	lruReplacer := NewLRUReplacer(7)

	t.Run("victim pops frames in unpin order", func(t *testing.T) {
		lruReplacer.Unpin(1)
		lruReplacer.Unpin(2)
		lruReplacer.Unpin(3)
		lruReplacer.Unpin(4)
		lruReplacer.Unpin(5)
		lruReplacer.Unpin(6)
		// unpin frame yang sudah ada = no-op
		lruReplacer.Unpin(1)
		assert.Equal(t, 6, lruReplacer.Size())

		var evictedFrameID types.FrameID
		assert.True(t, lruReplacer.Victim(&evictedFrameID))
		assert.Equal(t, types.FrameID(1), evictedFrameID)
		assert.True(t, lruReplacer.Victim(&evictedFrameID))
		assert.Equal(t, types.FrameID(2), evictedFrameID)
		assert.True(t, lruReplacer.Victim(&evictedFrameID))
		assert.Equal(t, types.FrameID(3), evictedFrameID)

		lruReplacer.Pin(3) // 3 sudah dievict, no-op
		lruReplacer.Pin(4) // hapus 4 dari lru
		lruReplacer.Unpin(4)

		assert.True(t, lruReplacer.Victim(&evictedFrameID))
		assert.Equal(t, types.FrameID(5), evictedFrameID)
		assert.True(t, lruReplacer.Victim(&evictedFrameID))
		assert.Equal(t, types.FrameID(6), evictedFrameID)
		assert.True(t, lruReplacer.Victim(&evictedFrameID))
		assert.Equal(t, types.FrameID(4), evictedFrameID)

		assert.Equal(t, 0, lruReplacer.Size())
		assert.False(t, lruReplacer.Victim(&evictedFrameID))
	})

	t.Run("pinned frame never becomes victim", func(t *testing.T) {
		lru := NewLRUReplacer(3)
		lru.Unpin(0)
		lru.Unpin(1)
		lru.Pin(0)

		var evictedFrameID types.FrameID
		assert.True(t, lru.Victim(&evictedFrameID))
		assert.Equal(t, types.FrameID(1), evictedFrameID)
		assert.False(t, lru.Victim(&evictedFrameID))
	})
}
