package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lintang-b-s/lintangdb/lib"
	"github.com/lintang-b-s/lintangdb/lib/buffer"
	"github.com/lintang-b-s/lintangdb/lib/disk"
	"github.com/lintang-b-s/lintangdb/lib/index"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print header page records and page file stats",
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	dm, err := disk.NewDiskManager(cfg.DataDir, cfg.PageFileName, lib.PAGE_SIZE, lg)
	if err != nil {
		return err
	}
	defer dm.Close()

	numPages, err := dm.NumPages()
	if err != nil {
		return err
	}
	fmt.Printf("page file: %s/%s, %d pages x %d bytes\n",
		cfg.DataDir, cfg.PageFileName, numPages, dm.PageSize())

	bpm := buffer.NewBufferPoolManager(16, dm, nil, lg)
	defer bpm.Close()

	frame, err := bpm.FetchPage(lib.HEADER_PAGE_ID)
	if err != nil {
		return err
	}
	header := index.NewHeaderPage(frame.Contents())

	fmt.Printf("header records: %d\n", header.GetRecordCount())
	for i := int32(0); i < header.GetRecordCount(); i++ {
		name, root := header.RecordAt(i)
		fmt.Printf("  %-32s root=%d\n", name, root)
	}
	bpm.UnpinPage(lib.HEADER_PAGE_ID, false)
	return nil
}
