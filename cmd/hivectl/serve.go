package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/hiveforge/kernel/internal/daemon"
)

var logFile string

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "ops",
	Short:   "Run the coordination daemon: storage, event bus, and the durable stream endpoint",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		rt, err := daemon.Build(rootCtx, cfg)
		if err != nil {
			fatal(err)
		}
		defer rt.Close()

		registry, err := daemon.NewRegistry()
		if err == nil {
			wd, _ := os.Getwd()
			_ = registry.Register(daemon.RegistryEntry{
				ProjectKey:    cfg.ProjectKey,
				WorkspaceRoot: wd,
				SocketPath:    cfg.SocketPath,
				PID:           os.Getpid(),
			})
			defer func() {
				wd, _ := os.Getwd()
				_ = registry.Unregister(wd, os.Getpid())
			}()
		}

		if err := daemon.Serve(rootCtx, cfg, rt, logFile); err != nil {
			fatal(err)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&logFile, "log-file", "", "rotate daemon logs to this path instead of stderr")
	rootCmd.AddCommand(serveCmd)
}
