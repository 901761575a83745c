package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ning0612/Comicshelf/internal/adapter"
	"github.com/Ning0612/Comicshelf/internal/service"
	"github.com/Ning0612/Comicshelf/internal/store"
)

func newAuthCmd() *cobra.Command {
	var logout bool

	cmd := &cobra.Command{
		Use:   "auth <provider>",
		Short: "Sign in to a storage provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseProvider(args[0])
			if err != nil {
				return err
			}
			backend, err := adapter.Open(cfg, t)
			if err != nil {
				return err
			}

			if logout {
				l, ok := backend.Credentials.(interface{ Logout() error })
				if !ok {
					return fmt.Errorf("%s has no stored login", t)
				}
				if err := l.Logout(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed out of %s\n", t)
				return nil
			}

			ctx := cmd.Context()
			token, err := backend.Credentials.Login(ctx)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			p, err := backend.Connect(ctx, token)
			if err != nil {
				return err
			}
			label := service.AccountLabel(ctx, p, cfg.Sync.ListTimeout)

			selections, err := store.Open(cfg.SelectionPath())
			if err != nil {
				return err
			}
			defer selections.Close()

			sel, _, err := selections.Get(t)
			if err != nil {
				return err
			}
			sel.AccountLabel = label
			if err := selections.Put(t, sel); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", t, label)
			return nil
		},
	}

	cmd.Flags().BoolVar(&logout, "logout", false, "Delete the stored token instead of signing in")
	return cmd
}
