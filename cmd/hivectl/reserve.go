package main

import (
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/hiveforge/kernel/internal/kernel"
	"github.com/hiveforge/kernel/internal/reservations"
)

var (
	reserveAgent     string
	reserveReason    string
	reserveExclusive bool
	reserveTTL       string
)

var reserveCmd = &cobra.Command{
	Use:     "reserve [paths...]",
	GroupID: "data",
	Short:   "Reserve one or more file path patterns for an agent",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := openAdapter(cfg)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		ttl, err := parseTTLSeconds(reserveTTL)
		if err != nil {
			fatal(err)
		}

		svc := reservations.New(kernel.New(a))
		rows, err := svc.ReserveFiles(rootCtx, cfg.ProjectKey, reservations.ReserveArgs{
			AgentName:  reserveAgent,
			Paths:      args,
			Reason:     reserveReason,
			Exclusive:  reserveExclusive,
			TTLSeconds: ttl,
		})
		if err != nil {
			fatal(err)
		}
		printResult(rows)
	},
}

var releaseCmd = &cobra.Command{
	Use:     "release [paths...]",
	GroupID: "data",
	Short:   "Release previously reserved file path patterns",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := openAdapter(cfg)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		svc := reservations.New(kernel.New(a))
		if err := svc.ReleaseFiles(rootCtx, cfg.ProjectKey, reserveAgent, args); err != nil {
			fatal(err)
		}
		printResult(map[string]any{"status": "ok"})
	},
}

// parseTTLSeconds accepts either a plain duration ("2h") or a natural
// language phrase ("in 2 hours", "tomorrow at 9am"), the same dual
// parsing strategy --defer/--snooze flags use elsewhere in this family
// of tools. An empty ttl means "never expires".
func parseTTLSeconds(ttl string) (int64, error) {
	ttl = strings.TrimSpace(ttl)
	if ttl == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(ttl); err == nil {
		return int64(d.Seconds()), nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	now := time.Now()
	r, err := w.Parse(ttl, now)
	if err != nil || r == nil {
		return 0, &ttlParseError{ttl: ttl}
	}
	return int64(r.Time.Sub(now).Seconds()), nil
}

type ttlParseError struct{ ttl string }

func (e *ttlParseError) Error() string {
	return "could not parse ttl: " + e.ttl
}

func init() {
	for _, cmd := range []*cobra.Command{reserveCmd, releaseCmd} {
		cmd.Flags().StringVar(&reserveAgent, "agent", "", "agent name")
		_ = cmd.MarkFlagRequired("agent")
		rootCmd.AddCommand(cmd)
	}
	reserveCmd.Flags().StringVar(&reserveReason, "reason", "", "why this path is being reserved")
	reserveCmd.Flags().BoolVar(&reserveExclusive, "exclusive", true, "exclusive (write) lock vs. shared (read) lock")
	reserveCmd.Flags().StringVar(&reserveTTL, "ttl", "", "expiry as a duration (\"2h\") or natural language (\"in 2 hours\")")
}
