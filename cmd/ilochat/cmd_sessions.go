package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ilochat/internal/conversation"
	"ilochat/internal/store"
)

// sessionsCmd manages saved conversation transcripts.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved conversation transcripts",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ts, err := store.NewTranscriptStore(cfg.Session.DatabasePath)
		if err != nil {
			return err
		}
		defer ts.Close()

		sessions, err := ts.ListSessions()
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("no saved sessions")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("%s  %-40s  %3d messages  %s\n",
				s.ID, s.Title, s.Messages, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a saved transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ts, err := store.NewTranscriptStore(cfg.Session.DatabasePath)
		if err != nil {
			return err
		}
		defer ts.Close()

		msgs, err := ts.LoadSession(args[0])
		if err != nil {
			return err
		}
		for _, m := range msgs {
			label := "you"
			if m.Role == conversation.RoleBot {
				label = "bot"
			}
			fmt.Printf("[%s] %s\n", label, m.Text)
			for _, ilo := range m.ILOs {
				fmt.Printf("      • %s\n", ilo.Statement)
			}
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a saved session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ts, err := store.NewTranscriptStore(cfg.Session.DatabasePath)
		if err != nil {
			return err
		}
		defer ts.Close()
		return ts.DeleteSession(args[0])
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}
