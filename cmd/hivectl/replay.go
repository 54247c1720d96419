package main

import (
	"github.com/spf13/cobra"

	"github.com/hiveforge/kernel/internal/kernel"
	"github.com/hiveforge/kernel/internal/replay"
)

var (
	replayFromSequence int64
	replayClearViews   bool
)

var replayCmd = &cobra.Command{
	Use:     "replay",
	GroupID: "ops",
	Short:   "Re-apply the event log through the projection registry",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := openAdapter(cfg)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		svc := replay.New(kernel.New(a))
		result, err := svc.ReplayEvents(rootCtx, replay.Options{
			ProjectKey:   cfg.ProjectKey,
			FromSequence: replayFromSequence,
			ClearViews:   replayClearViews,
		})
		if err != nil {
			fatal(err)
		}
		printResult(result)
	},
}

func init() {
	replayCmd.Flags().Int64Var(&replayFromSequence, "from-sequence", 0, "only replay events after this sequence")
	replayCmd.Flags().BoolVar(&replayClearViews, "clear-views", false, "truncate materialised views before replaying")
	rootCmd.AddCommand(replayCmd)
}
