package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-esploader/catalog"
	"github.com/moffa90/go-esploader/config"
)

func newImagesCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List the image catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			images, err := loadCatalog(cfg)
			if err != nil {
				return fmt.Errorf("load images: %w", err)
			}
			printCatalog(cmd.OutOrStdout(), images)
			return nil
		},
	}
}

func printCatalog(out io.Writer, images *catalog.Catalog) {
	for _, v := range images.Variants() {
		set := images.Lookup(v)
		if len(set) == 0 {
			fmt.Fprintf(out, "%s %s\n", color.New(color.Bold).Sprint(v), color.YellowString("(reserved)"))
			continue
		}
		fmt.Fprintf(out, "%s (%d images, %d bytes)\n", color.New(color.Bold).Sprint(v), len(set), set.TotalSize())

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, r := range set {
			fmt.Fprintf(w, "  0x%06X\t%d\t%s\n", r.Address, r.Length, r.Name)
		}
		_ = w.Flush()
	}
}
