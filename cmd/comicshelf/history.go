package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Comicshelf/internal/state"
)

func newHistoryCmd() *cobra.Command {
	var (
		provider string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync passes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if provider != "" {
				if _, err := parseProvider(provider); err != nil {
					return err
				}
			}

			m, err := state.NewManager(cfg.HistoryPath())
			if err != nil {
				return err
			}
			defer m.Close()

			records, err := m.History(provider, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tPROVIDER\tFOLDER\tSTATUS\tNEW\tSKIPPED\tFAILED\tSIZE\tTOOK")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
					r.StartTime.Local().Format("2006-01-02 15:04"),
					r.Provider, r.Folder, r.Status,
					r.Downloaded, r.Skipped, r.Failed,
					formatBytes(r.Bytes), r.Duration().Round(time.Second))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Only show passes of this provider")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of passes to show")
	return cmd
}
