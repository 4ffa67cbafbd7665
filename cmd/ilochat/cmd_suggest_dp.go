package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ilochat/internal/api"
)

var (
	dpTopic       string
	dpSubject     string
	dpDescription string
)

// suggestDPCmd asks the backend to recommend a disciplinary practice.
var suggestDPCmd = &cobra.Command{
	Use:   "suggest-dp",
	Short: "Recommend a disciplinary practice for a topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := backendClient().SuggestDP(context.Background(), api.SuggestDPRequest{
			Topic:       dpTopic,
			Subject:     dpSubject,
			Description: dpDescription,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Recommended: %s\n", rec.RecommendedDP)
		if rec.Reason != "" {
			fmt.Printf("Reason: %s\n", rec.Reason)
		}
		return nil
	},
}

func init() {
	suggestDPCmd.Flags().StringVar(&dpTopic, "topic", "", "Course topic (required)")
	suggestDPCmd.Flags().StringVar(&dpSubject, "subject", "", "Subject name")
	suggestDPCmd.Flags().StringVar(&dpDescription, "description", "", "Free-text course description")
	_ = suggestDPCmd.MarkFlagRequired("topic")
}
