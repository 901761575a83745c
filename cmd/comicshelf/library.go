package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Comicshelf/internal/library"
)

func newLibraryCmd() *cobra.Command {
	var (
		filter string
		fuzzy  bool
	)

	cmd := &cobra.Command{
		Use:   "library",
		Short: "List the archives in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := library.New(cfg.Library.Dir).Scan()
			if err != nil {
				return err
			}
			if fuzzy {
				entries = library.FuzzyFilter(entries, filter)
			} else {
				entries = library.Filter(entries, filter)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, formatBytes(e.Size), e.ModTime.Format("2006-01-02 15:04"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d archives in %s\n", len(entries), cfg.Library.Dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only show names containing this text (case-insensitive)")
	cmd.Flags().BoolVar(&fuzzy, "fuzzy", false, "Match the filter's letters in order and rank by closeness")
	return cmd
}
