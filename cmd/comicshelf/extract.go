package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Comicshelf/internal/archive"
)

func newExtractCmd() *cobra.Command {
	var coverOut string

	cmd := &cobra.Command{
		Use:   "extract <archive>",
		Short: "Extract an archive for reading and list its pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := archive.Ref(args[0])
			if err != nil {
				return err
			}
			inspector := newInspector()
			ctx := cmd.Context()

			if coverOut != "" {
				data, err := inspector.FirstPage(ctx, ref)
				if err != nil {
					return err
				}
				if err := os.WriteFile(coverOut, data, 0644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "cover written to %s\n", coverOut)
				return nil
			}

			dir, pages, err := inspector.Open(ctx, ref)
			if err != nil {
				return err
			}
			for _, p := range pages {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d pages extracted to %s\n", len(pages), dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&coverOut, "cover", "", "Only write the first page to this file")
	return cmd
}

func newInspector() *archive.Inspector {
	return archive.NewInspector(archive.DiscoverTools(cfg.Tools.Unar, cfg.Tools.Lsar), cfg.Cache.ScratchDir)
}
