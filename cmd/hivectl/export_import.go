package main

import (
	"github.com/spf13/cobra"

	"github.com/hiveforge/kernel/internal/kernel"
	"github.com/hiveforge/kernel/internal/replay"
)

var jsonlPath string

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "data",
	Short:   "Write dirty cells to a JSONL file and clear their dirty flags",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := openAdapter(cfg)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		svc := replay.New(kernel.New(a))
		n, err := svc.ExportDirty(rootCtx, jsonlPath)
		if err != nil {
			fatal(err)
		}
		printResult(map[string]any{"exported": n, "path": jsonlPath})
	},
}

var importCmd = &cobra.Command{
	Use:     "import",
	GroupID: "data",
	Short:   "Import cells from a JSONL file, skipping ids already present",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := openAdapter(cfg)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		svc := replay.New(kernel.New(a))
		n, err := svc.ImportJSONL(rootCtx, cfg.ProjectKey, jsonlPath)
		if err != nil {
			fatal(err)
		}
		printResult(map[string]any{"imported": n, "path": jsonlPath})
	},
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "data",
	Short:   "Watch a JSONL file and import on every write",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := openAdapter(cfg)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		svc := replay.New(kernel.New(a))
		if err := svc.WatchImport(rootCtx, cfg.ProjectKey, jsonlPath); err != nil {
			fatal(err)
		}
	},
}

func init() {
	for _, cmd := range []*cobra.Command{exportCmd, importCmd, watchCmd} {
		cmd.Flags().StringVar(&jsonlPath, "path", ".hive/issues.jsonl", "JSONL file path")
		rootCmd.AddCommand(cmd)
	}
}
