package main

import (
	"context"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func listMain(command *cobra.Command, arguments []string) error {
	coordinator, err := openCoordinator(context.Background())
	if err != nil {
		return err
	}
	defer coordinator.Stop()

	if listConfiguration.partial != "" {
		data, err := coordinator.PartialListing(listConfiguration.partial, listConfiguration.recurse)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	fl, err := coordinator.FileList(listConfiguration.hub)
	if err != nil {
		return err
	}

	cmdPrintf("generation:    %d\n", fl.ListN)
	cmdPrintf("xml size:      %s\n", humanize.Bytes(fl.XMLLength))
	cmdPrintf("compressed:    %s (%s)\n", humanize.Bytes(fl.BzXMLLength), fl.BzXMLFile)
	cmdPrintf("last updated:  %s\n", fl.LastXMLUpdate.Format("2006-01-02 15:04:05"))
	return nil
}

var listCommand = &cobra.Command{
	Use:   "list",
	Short: "Generates or serves a per-hub file listing",
	RunE:  listMain,
}

var listConfiguration struct {
	hub     string
	partial string
	recurse bool
}

func init() {
	flags := listCommand.Flags()
	flags.StringVar(&listConfiguration.hub, "hub", "", "Hub URL scoping the listing (empty for the default list)")
	flags.StringVar(&listConfiguration.partial, "partial", "", "Generate an on-the-fly fragment for this virtual root name instead")
	flags.BoolVar(&listConfiguration.recurse, "recurse", true, "Recurse into subdirectories for --partial")
}
