package main

import (
	"github.com/spf13/cobra"

	"github.com/hiveforge/kernel/internal/kernel"
	"github.com/hiveforge/kernel/internal/messaging"
)

var (
	inboxAgent     string
	sendTo         string
	sendSubject    string
	sendBody       string
	sendThreadID   string
	sendImportance string
)

var inboxCmd = &cobra.Command{
	Use:     "inbox",
	GroupID: "data",
	Short:   "List messages addressed to an agent",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := openAdapter(cfg)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		svc := messaging.New(kernel.New(a), cfg.InboxBodyChars)
		msgs, err := svc.Inbox(rootCtx, cfg.ProjectKey, messaging.InboxFilter{Agent: inboxAgent})
		if err != nil {
			fatal(err)
		}
		printResult(msgs)
	},
}

var sendCmd = &cobra.Command{
	Use:     "send",
	GroupID: "data",
	Short:   "Send a message to another agent",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		a, err := openAdapter(cfg)
		if err != nil {
			fatal(err)
		}
		defer a.Close()

		svc := messaging.New(kernel.New(a), cfg.InboxBodyChars)
		id, err := svc.SendMessage(rootCtx, cfg.ProjectKey, messaging.SendArgs{
			FromAgent:  inboxAgent,
			ToAgents:   []string{sendTo},
			Subject:    sendSubject,
			Body:       sendBody,
			ThreadID:   sendThreadID,
			Importance: sendImportance,
		})
		if err != nil {
			fatal(err)
		}
		printResult(map[string]any{"id": id})
	},
}

func init() {
	inboxCmd.Flags().StringVar(&inboxAgent, "agent", "", "agent name")
	_ = inboxCmd.MarkFlagRequired("agent")

	sendCmd.Flags().StringVar(&inboxAgent, "from", "", "sending agent name")
	sendCmd.Flags().StringVar(&sendTo, "to", "", "recipient agent name")
	sendCmd.Flags().StringVar(&sendSubject, "subject", "", "message subject")
	sendCmd.Flags().StringVar(&sendBody, "body", "", "message body")
	sendCmd.Flags().StringVar(&sendThreadID, "thread", "", "thread id to reply within")
	sendCmd.Flags().StringVar(&sendImportance, "importance", "normal", "urgent, high, or normal")
	_ = sendCmd.MarkFlagRequired("from")
	_ = sendCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(inboxCmd, sendCmd)
}
