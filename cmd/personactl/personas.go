package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/suPer8Hu/personapal/internal/bootstrap"
	"github.com/suPer8Hu/personapal/internal/config"
	"github.com/suPer8Hu/personapal/internal/persona"
	"github.com/suPer8Hu/personapal/internal/store/localstore"
)

func newPersonasCmd(load func() config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "personas",
		Short: "List and migrate personas",
	}

	var user string

	list := &cobra.Command{
		Use:   "list",
		Short: "List the personas a user can chat with",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := load()
			b, err := bootstrap.Open(cmd.Context(), cfg)
			if err != nil {
				return errors.Wrap(err, "open backends")
			}
			defer b.Close()

			repo := bootstrap.Repository(cfg, b, nil)
			personas, err := repo.ListForUser(cmd.Context(), user)
			if err != nil {
				return errors.Wrap(err, "list personas")
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTITLE\tSOURCE\tPUBLIC")
			for _, p := range personas {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", p.ID, p.Name, p.Title, p.Source, p.Public)
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&user, "user", "", "user id; empty lists built-ins only")

	migrate := &cobra.Command{
		Use:   "migrate-local",
		Short: "Move a user's legacy local personas to their per-user key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" {
				return errors.New("--user is required")
			}
			cfg := load()
			b, err := bootstrap.Open(cmd.Context(), cfg)
			if err != nil {
				return errors.Wrap(err, "open backends")
			}
			defer b.Close()
			if b.LocalStore() == nil {
				return errors.Errorf("local persona store unavailable at %q", cfg.LocalStorePath)
			}

			repo := bootstrap.Repository(cfg, b, nil)
			if err := repo.MigrateLegacy(cmd.Context(), user); err != nil {
				return errors.Wrapf(err, "migrate user %s", user)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated local personas for %s\n", user)
			return nil
		},
	}
	migrate.Flags().StringVar(&user, "user", "", "user id to migrate")

	keys := &cobra.Command{
		Use:   "local-keys",
		Short: "List the keys held in the local persona file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := load()
			ls, err := localstore.Open(cfg.LocalStorePath)
			if err != nil {
				return errors.Wrapf(err, "open local store %s", cfg.LocalStorePath)
			}
			defer ls.Close()

			keys, err := ls.Keys(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "list keys")
			}
			for _, k := range keys {
				if k == persona.LegacyLocalKey {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t(legacy, not migrated)\n", k)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}

	cmd.AddCommand(list, migrate, keys)
	return cmd
}
