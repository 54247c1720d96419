package main

import (
	"github.com/spf13/cobra"

	"github.com/hiveforge/kernel/internal/cells"
	"github.com/hiveforge/kernel/internal/kernel"
)

var (
	cellTitle       string
	cellDescription string
	cellIssueType   string
	cellPriority    int
	cellParentID    string
	cellAssignee    string
	cellStatus      string
	cellCloseReason string
)

var cellsCmd = &cobra.Command{
	Use:     "cells",
	GroupID: "data",
	Short:   "Create and query work cells (beads)",
}

func cellsService() (*cells.Service, func()) {
	cfg := loadConfig()
	a, err := openAdapter(cfg)
	if err != nil {
		fatal(err)
	}
	return cells.New(kernel.New(a), "hv", 8), func() { _ = a.Close() }
}

var cellCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new cell",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		svc, closer := cellsService()
		defer closer()

		c, err := svc.CreateBead(rootCtx, cfg.ProjectKey, cells.CreateArgs{
			Title:       cellTitle,
			Description: cellDescription,
			IssueType:   cellIssueType,
			Priority:    cellPriority,
			ParentID:    cellParentID,
			Assignee:    cellAssignee,
		})
		if err != nil {
			fatal(err)
		}
		printResult(c)
	},
}

var cellShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a single cell by full id or unique short-id substring",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		svc, closer := cellsService()
		defer closer()

		c, err := svc.GetBead(rootCtx, cfg.ProjectKey, args[0])
		if err != nil {
			fatal(err)
		}
		printResult(c)
	},
}

var cellListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cells matching a filter",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		svc, closer := cellsService()
		defer closer()

		rows, err := svc.QueryBeads(rootCtx, cfg.ProjectKey, cells.QueryFilter{
			Status:   cellStatus,
			Assignee: cellAssignee,
			ParentID: cellParentID,
		})
		if err != nil {
			fatal(err)
		}
		printResult(rows)
	},
}

var cellCloseCmd = &cobra.Command{
	Use:   "close [id]",
	Short: "Close a cell",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		svc, closer := cellsService()
		defer closer()

		if err := svc.CloseBead(rootCtx, cfg.ProjectKey, args[0], cellCloseReason); err != nil {
			fatal(err)
		}
		printResult(map[string]any{"status": "closed"})
	},
}

func init() {
	cellCreateCmd.Flags().StringVar(&cellTitle, "title", "", "cell title")
	cellCreateCmd.Flags().StringVar(&cellDescription, "description", "", "cell description")
	cellCreateCmd.Flags().StringVar(&cellIssueType, "type", "task", "issue type")
	cellCreateCmd.Flags().IntVar(&cellPriority, "priority", 2, "priority (0 highest)")
	cellCreateCmd.Flags().StringVar(&cellParentID, "parent", "", "parent epic id")
	cellCreateCmd.Flags().StringVar(&cellAssignee, "assignee", "", "assignee agent name")
	_ = cellCreateCmd.MarkFlagRequired("title")

	cellListCmd.Flags().StringVar(&cellStatus, "status", "", "filter by status")
	cellListCmd.Flags().StringVar(&cellAssignee, "assignee", "", "filter by assignee")
	cellListCmd.Flags().StringVar(&cellParentID, "parent", "", "filter by parent epic id")

	cellCloseCmd.Flags().StringVar(&cellCloseReason, "reason", "Closed", "close reason")

	cellsCmd.AddCommand(cellCreateCmd, cellShowCmd, cellListCmd, cellCloseCmd)
	rootCmd.AddCommand(cellsCmd)
}
