package main

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hubshare/shareindex/internal/share/search"
)

func searchMain(command *cobra.Command, arguments []string) error {
	if len(arguments) == 0 {
		return command.Help()
	}

	coordinator, err := openCoordinator(context.Background())
	if err != nil {
		return err
	}
	defer coordinator.Stop()

	results := coordinator.Search(search.LegacyQuery{
		Terms:      arguments,
		MinSize:    searchConfiguration.minSize,
		MaxSize:    searchConfiguration.maxSize,
		MaxResults: searchConfiguration.maxResults,
	})

	if len(results) == 0 {
		cmdPrintf("no results\n")
		return nil
	}
	for _, r := range results {
		cmdPrintf("%-10s %s  %s\n", humanize.Bytes(r.Size), r.TTH.String(), r.VirtualPath)
	}
	return nil
}

var searchCommand = &cobra.Command{
	Use:   "search <term>...",
	Short: "Searches the share index using legacy string/size matching",
	RunE:  searchMain,
}

var searchConfiguration struct {
	minSize    uint64
	maxSize    uint64
	maxResults int
}

func init() {
	flags := searchCommand.Flags()
	flags.Uint64Var(&searchConfiguration.minSize, "min-size", 0, "Minimum file size, in bytes")
	flags.Uint64Var(&searchConfiguration.maxSize, "max-size", 0, "Maximum file size, in bytes (0 is unbounded)")
	flags.IntVar(&searchConfiguration.maxResults, "max-results", 50, "Maximum number of results to return")
}
