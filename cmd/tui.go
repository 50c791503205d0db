package cmd

import (
	"context"
	"fmt"
	"os"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	glog "github.com/Laisky/go-utils/v6/log"
	"github.com/Laisky/zap"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Laisky/reel-places/cmd/tui"
	"github.com/Laisky/reel-places/library/log"
)

var searchCMD = &cobra.Command{
	Use:   "search",
	Short: "Interactive recommendation search",
	Long: `Search recommendations for a place from the terminal.

Keyboard shortcuts:
  Enter       Search
  Tab         Switch between All, Movie and Series
  Esc         Stop waiting for the current lookup
  Ctrl+C      Quit`,
	Args: gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSearch(context.Background(), loadSettingsFromConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "Error running search: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCMD.AddCommand(searchCMD)
}

// runSearch starts the terminal search screen and returns any start/run error.
func runSearch(ctx context.Context, cfg Settings) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := newRecommendService(cfg, store)
	if err != nil {
		return err
	}

	// console logs would draw over the alternate screen
	if !gconfig.Shared.GetBool("debug") {
		if err = log.Logger.ChangeLevel(glog.Level("error")); err != nil {
			return errors.Wrap(err, "change log level")
		}
	}

	p := tea.NewProgram(
		tui.NewModel(ctx, svc),
		tea.WithAltScreen(),
	)

	_, err = p.Run()
	return errors.WithStack(err)
}
