package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	errors "github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/Laisky/reel-places/internal/recommend"
	"github.com/Laisky/reel-places/library/log"
)

var lookupCMD = &cobra.Command{
	Use:   "lookup <term>",
	Short: "lookup",
	Long:  `look up recommendations for one term and print them as JSON`,
	Args:  cobra.MinimumNArgs(1),
	PreRun: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		if err := initialize(ctx, cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		cfg := loadSettingsFromConfig()
		store, closeStore, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		svc, err := newRecommendService(cfg, store)
		if err != nil {
			return err
		}

		mediaType, _ := cmd.Flags().GetString("type")
		return runLookup(ctx, os.Stdout, svc, strings.Join(args, " "), recommend.ParseMediaFilter(mediaType))
	},
}

type lookupOutput struct {
	Term      string                  `json:"term"`
	Canonical string                  `json:"canonical"`
	Source    recommend.Source        `json:"source"`
	Result    *recommend.SearchResult `json:"result"`
}

// recommender is the part of recommend.Service the lookup command needs.
type recommender interface {
	Lookup(ctx context.Context, displayTerm string) (*recommend.Lookup, error)
}

func runLookup(ctx context.Context, w io.Writer, svc recommender, term string, filter recommend.MediaFilter) error {
	got, err := svc.Lookup(ctx, term)
	if err != nil {
		if typed, ok := recommend.AsError(err); ok && typed.Retryable() {
			return errors.Wrap(err, "lookup failed, try again")
		}
		return errors.Wrap(err, "lookup")
	}

	out, err := json.MarshalIndent(lookupOutput{
		Term:      got.Term,
		Canonical: got.Canonical,
		Source:    got.Source,
		Result:    filter.Apply(got.Result),
	}, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal result")
	}

	_, err = fmt.Fprintln(w, string(out))
	return errors.WithStack(err)
}

func init() {
	rootCMD.AddCommand(lookupCMD)
	lookupCMD.Flags().String("type", string(recommend.FilterAll), "All, Movie or Series")
}
