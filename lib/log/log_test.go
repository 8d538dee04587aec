package log

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/lib/logger"
	"github.com/lintang-b-s/lintangdb/types"
)

func createLogMessage(name string) []byte {
	buf := make([]byte, len([]byte(name))+4)
	page := disk.NewPageFromByteSlice(buf)
	page.PutString(0, name)
	return page.Contents()
}

func TestLogManager(t *testing.T) {
	dm, err := disk.NewDiskManager(t.TempDir(), lib.LOG_FILE_NAME, lib.PAGE_SIZE, logger.NewDiscard())
	require.NoError(t, err)
	defer dm.Close()

	lm, err := NewLogManager(dm)
	require.NoError(t, err)

	const numRecords = 10000

	t.Run("append log records", func(t *testing.T) {
		for i := 0; i < numRecords; i++ {
			lsn, err := lm.Append(createLogMessage(fmt.Sprintf("lintang %d", i)))
			require.NoError(t, err)
			assert.Equal(t, types.LSN(i+1), lsn)
		}
	})

	t.Run("iterate dari record terakhir ke terdahulu", func(t *testing.T) {
		logIterator, err := lm.GetIterator()
		require.NoError(t, err)

		logIdx := numRecords - 1
		for record := range logIterator.IterateLog() {
			page := disk.NewPageFromByteSlice(record)
			assert.Equal(t, fmt.Sprintf("lintang %d", logIdx), page.GetString(0))
			logIdx--
		}
		assert.NoError(t, logIterator.GetError())
		assert.Equal(t, -1, logIdx)
	})

	t.Run("flush by lsn watermark", func(t *testing.T) {
		writesBefore := dm.GetNumWrites()
		require.NoError(t, lm.Flush(0)) // sudah kesave, no-op
		assert.Equal(t, writesBefore, dm.GetNumWrites())
	})
}
