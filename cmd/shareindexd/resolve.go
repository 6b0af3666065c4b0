package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hubshare/shareindex/internal/share/resolve"
)

func resolveMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 1 {
		return command.Help()
	}

	coordinator, err := openCoordinator(context.Background())
	if err != nil {
		return err
	}
	defer coordinator.Stop()

	peer := resolve.Peer{HubURL: resolveConfiguration.hub}
	path, size, err := coordinator.Resolver().ToRealWithSize(arguments[0], resolveConfiguration.hub != "", peer, "")
	if err != nil {
		return err
	}

	cmdPrintf("%s\t%d bytes\n", path, size)
	return nil
}

var resolveCommand = &cobra.Command{
	Use:   "resolve <virtual-path-or-TTH/...>",
	Short: "Resolves a virtual path or TTH shorthand to a real filesystem path",
	RunE:  resolveMain,
}

var resolveConfiguration struct {
	hub string
}

func init() {
	flags := resolveCommand.Flags()
	flags.StringVar(&resolveConfiguration.hub, "hub", "", "Requesting peer's hub URL, to honor per-root hub exclusion")
}
