package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ilochat/internal/api"
)

var (
	genTopic    string
	genSubject  string
	genGrade    string
	genCategory string
	genBloom    string
	genVerb     string
	genPractice string
)

// generateCmd runs a one-shot ILO generation without the TUI.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate ILO statements for a topic in one shot",
	Long: `Requests ILO generation directly, bypassing the chat interface.
Names are sent as given; they are not validated against the taxonomies.

Example:
  ilochat generate --topic "光合作用" --subject Science --category Knowledge \
    --bloom Apply --verb demonstrate`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&genTopic, "topic", "", "Course topic (required)")
	generateCmd.Flags().StringVar(&genSubject, "subject", "", "Subject name")
	generateCmd.Flags().StringVar(&genGrade, "grade", "", "Grade level name")
	generateCmd.Flags().StringVar(&genCategory, "category", "", "ILO category name (required)")
	generateCmd.Flags().StringVar(&genBloom, "bloom", "", "Bloom level name")
	generateCmd.Flags().StringVar(&genVerb, "verb", "", "Action verb")
	generateCmd.Flags().StringVar(&genPractice, "dp", "General Inquiry", "Disciplinary practice")
	_ = generateCmd.MarkFlagRequired("topic")
	_ = generateCmd.MarkFlagRequired("category")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	client := backendClient()

	logger.Info("requesting ILO generation",
		zap.String("topic", genTopic),
		zap.String("category", genCategory),
		zap.String("bloom", genBloom))

	res, err := client.GenerateILOs(context.Background(), api.GenerateRequest{
		Topic:                genTopic,
		Subject:              genSubject,
		Grade:                genGrade,
		Category:             genCategory,
		BloomLevel:           genBloom,
		ActionVerb:           genVerb,
		DisciplinaryPractice: genPractice,
	})
	if err != nil {
		return err
	}
	if !res.OK() {
		if res.ErrorText != "" {
			return fmt.Errorf("generation failed: %s", res.ErrorText)
		}
		return fmt.Errorf("generation failed: HTTP %d", res.Status)
	}
	if len(res.Statements) == 0 {
		return fmt.Errorf("no statements in response: %s", res.Raw)
	}

	for i, s := range res.Statements {
		fmt.Printf("%d. %s\n", i+1, s)
	}
	return nil
}
