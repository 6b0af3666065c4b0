package main

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func statsMain(command *cobra.Command, arguments []string) error {
	coordinator, err := openCoordinator(context.Background())
	if err != nil {
		return err
	}
	defer coordinator.Stop()

	stats := coordinator.Stats()
	cmdPrintf("roots:       %d\n", stats.Roots)
	cmdPrintf("directories: %d\n", stats.Directories)
	cmdPrintf("files:       %d\n", stats.Files)
	cmdPrintf("total size:  %s\n", humanize.Bytes(stats.TotalSize))
	cmdPrintf("search hits: %d\n", stats.SearchHits)
	return nil
}

var statsCommand = &cobra.Command{
	Use:   "stats",
	Short: "Reports aggregate counters over the live catalog",
	RunE:  statsMain,
}
