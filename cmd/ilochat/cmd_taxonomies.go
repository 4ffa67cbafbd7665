package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ilochat/internal/taxonomy"
)

// taxonomiesCmd lists the backend's taxonomy collections.
var taxonomiesCmd = &cobra.Command{
	Use:   "taxonomies [subjects|grades|categories|bloom|patterns]",
	Short: "List the backend taxonomies used to scope ILO generation",
	Long: `Fetches one of the taxonomy collections and prints it with display
names resolved to the configured locale.

Examples:
  ilochat taxonomies subjects
  ilochat taxonomies bloom --locale en_US`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"subjects", "grades", "categories", "bloom", "patterns"},
	RunE:      runTaxonomies,
}

func runTaxonomies(cmd *cobra.Command, args []string) error {
	client := backendClient()
	ctx := context.Background()
	loc := cfg.Backend.Locale

	switch args[0] {
	case "subjects":
		items, err := client.ListSubjects(ctx)
		if err != nil {
			return err
		}
		printEntities(items, loc)

	case "grades":
		items, err := client.ListGradeLevels(ctx)
		if err != nil {
			return err
		}
		printEntities(items, loc)

	case "categories":
		items, err := client.ListCategories(ctx)
		if err != nil {
			return err
		}
		for _, c := range items {
			cat := c
			suffix := ""
			if c.ShowBloomTaxonomy.Bool() {
				suffix = "  [bloom]"
				if c.RequireBloomTaxonomy.Bool() {
					suffix = "  [bloom required]"
				}
			}
			fmt.Printf("%4d  %s%s\n", c.ID, taxonomy.ResolveName(&cat.Entity, loc), suffix)
		}

	case "bloom":
		items, err := client.ListBloomLevels(ctx)
		if err != nil {
			return err
		}
		for _, l := range items {
			level := l
			fmt.Printf("%4d  %s\n", l.ID, taxonomy.ResolveName(&level.Entity, loc))
			for _, v := range l.Verbs {
				verb := v
				fmt.Printf("      - %d %s\n", v.ID, taxonomy.ResolveName(&verb, loc))
			}
		}

	case "patterns":
		items, err := client.ListPatterns(ctx)
		if err != nil {
			return err
		}
		for _, p := range items {
			pat := p
			fmt.Printf("%4d  %s\n", p.ID, taxonomy.ResolveName(&pat.Entity, loc))
			if s := taxonomy.ResolveStatement(&pat.Entity, loc); s != "" {
				fmt.Printf("      %s\n", s)
			}
		}

	default:
		return fmt.Errorf("unknown collection %q", args[0])
	}

	logger.Debug("taxonomy list complete", zap.String("collection", args[0]))
	return nil
}

func printEntities(items []taxonomy.Entity, loc string) {
	for _, e := range items {
		entity := e
		fmt.Printf("%4d  %s\n", e.ID, taxonomy.ResolveName(&entity, loc))
	}
}
