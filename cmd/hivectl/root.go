// Command hivectl is the thin admin CLI over the kernel: it never holds
// domain state of its own, only opens the configured storage adapter
// directly (it never talks to a running daemon) and calls straight into
// the same service packages the daemon uses.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hiveforge/kernel/internal/config"
)

var (
	jsonOutput bool
	rootCtx    = context.Background()
)

var rootCmd = &cobra.Command{
	Use:   "hivectl",
	Short: "Admin CLI for the hive coordination kernel",
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of human-readable text")
	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Data commands:"},
		&cobra.Group{ID: "ops", Title: "Operational commands:"},
	)
}

func main() {
	if err := config.Initialize(); err != nil {
		fatal(err)
	}
	if err := rootCmd.Execute(); err != nil {
		fatal(err)
	}
}

// fatal prints err and exits 1, respecting --json the same way the
// teacher's FatalErrorRespectJSON does for scriptable callers.
func fatal(err error) {
	if jsonOutput {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(1)
}

func printResult(v any) {
	if jsonOutput {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fatal(err)
		}
		fmt.Println(string(data))
		return
	}
	fmt.Printf("%+v\n", v)
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	return cfg
}
