// Command shareindexd is a demonstration harness over package share: it
// scans a set of configured roots and exposes refresh, search, listing,
// and resolution operations as one-shot subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hubshare/shareindex/internal/logging"
)

func rootMain(command *cobra.Command, arguments []string) {
	command.Help()
}

var rootCommand = &cobra.Command{
	Use:   "shareindexd",
	Short: "shareindexd scans and serves a hub-protocol share index",
	Run:   rootMain,
}

var rootConfiguration struct {
	// cacheDir holds the persisted catalog and per-hub listing cache.
	cacheDir string
	// roots are "realPath=virtualName" pairs describing the shared
	// directories to scan.
	roots []string
	// scanRate caps filesystem entries walked per second during a
	// refresh. Zero disables throttling.
	scanRate int
	// logLevel is parsed with logging.NameToLevel: "disabled" turns logging
	// off, and any other level name enables all log output.
	logLevel string
}

// resolveLogger converts the --log-level flag to a *logging.Logger,
// returning nil (which silently discards all output) for "disabled" or an
// unrecognized name.
func resolveLogger() *logging.Logger {
	level, ok := logging.NameToLevel(rootConfiguration.logLevel)
	if !ok {
		fmt.Fprintf(os.Stderr, "warning: unrecognized --log-level %q, disabling logging\n", rootConfiguration.logLevel)
	}
	if level == logging.LevelDisabled {
		return nil
	}
	return logging.RootLogger
}

func init() {
	flags := rootCommand.PersistentFlags()
	flags.StringVar(&rootConfiguration.cacheDir, "cache-dir", ".shareindex-cache", "Directory for the persisted catalog and listing cache")
	flags.StringArrayVar(&rootConfiguration.roots, "root", nil, "A shared root as realPath=virtualName (repeatable)")
	flags.IntVar(&rootConfiguration.scanRate, "scan-rate", 0, "Maximum filesystem entries scanned per second (0 disables throttling)")
	flags.StringVar(&rootConfiguration.logLevel, "log-level", "info", "Logging level: disabled turns logging off; error, warn, info, debug or trace enable all output")

	cobra.EnableCommandSorting = false

	rootCommand.AddCommand(
		refreshCommand,
		searchCommand,
		listCommand,
		resolveCommand,
		statsCommand,
	)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
