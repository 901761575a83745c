package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Comicshelf/internal/library"
	"github.com/Ning0612/Comicshelf/internal/thumbnail"
)

func newThumbsCmd() *cobra.Command {
	var (
		size   int
		filter string
		prune  bool
	)

	cmd := &cobra.Command{
		Use:   "thumbs",
		Short: "Generate cover thumbnails for the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if size <= 0 {
				size = cfg.Cache.ThumbSize
			}

			entries, err := library.New(cfg.Library.Dir).Scan()
			if err != nil {
				return err
			}
			cache := thumbnail.NewCache(cfg.Cache.Dir, newInspector())

			if prune {
				// pruning always considers the whole library
				removed, err := cache.Prune(library.Paths(entries))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d stale thumbnails\n", removed)
				return nil
			}

			paths := library.Paths(library.Filter(entries, filter))
			batch := thumbnail.NewBatcher(cache).Start(cmd.Context(), paths, size)

			var made, hits, failed int
			for ev := range batch.Events() {
				switch {
				case ev.Err != nil:
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%d/%d %s: %v\n", ev.Done, ev.Total, ev.Path, ev.Err)
				case ev.Result.Hit:
					hits++
				default:
					made++
					fmt.Fprintf(cmd.OutOrStdout(), "%d/%d %s\n", ev.Done, ev.Total, ev.Result.Path)
				}
			}
			batch.Wait()

			fmt.Fprintf(cmd.OutOrStdout(), "%d generated, %d cached, %d failed\n", made, hits, failed)
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&size, "size", "s", 0, "Thumbnail box size in pixels (default: cache.thumb_size)")
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only thumbnail names containing this text")
	cmd.Flags().BoolVar(&prune, "prune", false, "Delete thumbnails of archives no longer in the library")
	return cmd
}
