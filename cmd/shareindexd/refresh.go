package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/hubshare/shareindex/internal/share/refresh"
)

func refreshMain(command *cobra.Command, arguments []string) error {
	coordinator, err := openCoordinator(context.Background())
	if err != nil {
		return err
	}
	defer coordinator.Stop()

	opts := refresh.Options{
		All:       refreshConfiguration.directory == "",
		Directory: refreshConfiguration.directory,
		Blocking:  true,
	}
	if err := coordinator.Refresh(context.Background(), opts); err != nil {
		return errors.Wrap(err, "refresh failed")
	}

	stats := coordinator.Stats()
	cmdPrintf("scanned %d root(s): %d directories, %d files\n", stats.Roots, stats.Directories, stats.Files)
	return nil
}

var refreshCommand = &cobra.Command{
	Use:   "refresh",
	Short: "Rescans the configured roots",
	RunE:  refreshMain,
}

var refreshConfiguration struct {
	// directory restricts the refresh to a single configured root's real
	// path. Empty means every root.
	directory string
}

func init() {
	flags := refreshCommand.Flags()
	flags.StringVar(&refreshConfiguration.directory, "dir", "", "Restrict the refresh to a single root's real path")
}
