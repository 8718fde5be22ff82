package cmd

import (
	"fmt"
	"strings"

	"github.com/audiolibrelab/improvlab/internal/catalog"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the practice chords and their outlines",
	Long:  `List the chords of the catalog with their audio layers and outline suggestions. Use --category to show a single chord category.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, _ := cmd.Flags().GetString("category")
		showOutlines, _ := cmd.Flags().GetBool("outlines")

		if filter != "" && !catalog.ChordCategory(filter).IsValid() {
			return fmt.Errorf("unknown chord category '%s' (valid: %s)", filter, joinCategories(catalog.ChordCategories))
		}

		cat, err := catalog.LoadOrDefault(cfg.Catalog.File)
		if err != nil {
			return err
		}

		source := "built-in"
		if cfg.Catalog.File != "" {
			source = cfg.Catalog.File
		}
		fmt.Printf("=== CATALOG (%s) ===\n", source)
		fmt.Printf("drums: %s\n", cat.DrumsAudioID())

		count := 0
		for _, e := range cat.Entries() {
			if filter != "" && string(e.Category) != filter {
				continue
			}
			count++

			fmt.Printf("\n[%s] %s\n", e.Name, e.Category)
			fmt.Printf("  harmony: %s\n", e.PrimaryAudioID)
			if e.HasSecondary() {
				fmt.Printf("  bass: %s\n", e.SecondaryAudioID)
			}
			for _, oc := range catalog.OutlineCategories {
				outlines := e.Outlines[oc]
				if len(outlines) == 0 {
					continue
				}
				if showOutlines {
					fmt.Printf("  %s:\n", oc)
					for _, o := range outlines {
						fmt.Printf("    - %s\n", o)
					}
				} else {
					fmt.Printf("  %s: %d outlines\n", oc, len(outlines))
				}
			}
		}

		fmt.Printf("\n%d chords\n", count)
		return nil
	},
}

func joinCategories(cats []catalog.ChordCategory) string {
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func init() {
	catalogCmd.Flags().String("category", "", "only show chords of this category")
	catalogCmd.Flags().Bool("outlines", false, "print every outline suggestion")
}
