// Package cmd implements the vecta command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "github.com/Adithya-Monish-Kumar-K/vecta/pkg/errors"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

type rootOptions struct {
	configPath   string
	indexPath    string
	workspaceDir string
	logLevel     string
	global       bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "vecta",
		Short: "Index a directory tree and search it from the command line",
		Long: `vecta indexes the text files under one or more directories into a
local segment index and answers ranked full-text queries against it.

Run 'vecta init' once, then 'vecta index <dir>' and 'vecta search <query>'.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("vecta {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config document (default .vecta/config/vecta.yaml)")
	pf.StringVar(&opts.indexPath, "index", "", "index directory, overriding indexer.dataDir")
	pf.StringVarP(&opts.workspaceDir, "workspace", "w", "", "directory holding .vecta (default: nearest above the working directory)")
	pf.BoolVarP(&opts.global, "global", "g", false, "use the workspace in the home directory")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default from config)")

	cmd.AddCommand(
		newInitCmd(opts),
		newIndexCmd(opts),
		newMergeCmd(opts),
		newSearchCmd(opts),
		newListCmd(opts),
		newRemoveCmd(opts),
		newDestroyCmd(opts),
		newStatsCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return apperrors.ExitCode(err)
	}
	return 0
}
