package main

import (
	"github.com/spf13/cobra"

	"github.com/hiveforge/kernel/internal/schema"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "ops",
	Short:   "Apply any pending schema migrations",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := openAdapter(cfg)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		if err := schema.Run(rootCtx, a); err != nil {
			fatal(err)
		}
		printResult(map[string]any{"status": "ok", "migrations": len(schema.List)})
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
