package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deusflow/newsbrief/internal/app"
	"github.com/deusflow/newsbrief/internal/config"
)

var checkStoreCmd = &cobra.Command{
	Use:   "check-store",
	Short: "Open the configured seen store and report what each category has recorded",
	RunE:  runCheckStore,
}

func init() {
	checkStoreCmd.Flags().StringVar(&categoriesPath, "config", "", "categories YAML (overrides CATEGORIES_CONFIG_PATH)")
	rootCmd.AddCommand(checkStoreCmd)
}

func runCheckStore(cmd *cobra.Command, args []string) error {
	if categoriesPath != "" {
		os.Setenv("CATEGORIES_CONFIG_PATH", categoriesPath)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	out := cmd.OutOrStdout()
	target := cfg.StateDir
	if cfg.SeenBackend == config.BackendPostgres {
		target = maskPassword(cfg.DatabaseURL)
	}
	fmt.Fprintf(out, "Seen backend: %s (%s)\n", cfg.SeenBackend, target)

	store, closeStore, err := app.OpenSeenStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open seen store: %w", err)
	}
	defer closeStore()

	for _, cat := range cfg.Categories {
		st, err := store.Load(cmd.Context(), cat.Key)
		if err != nil {
			return fmt.Errorf("load %s: %w", cat.Key, err)
		}
		updated := "never"
		if !st.Updated().IsZero() {
			updated = st.Updated().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "  %-12s links=%d titles=%d updated=%s\n", cat.Key, len(st.Links()), len(st.Titles()), updated)
	}
	return nil
}

func maskPassword(dbURL string) string {
	if len(dbURL) > 50 {
		return dbURL[:30] + "***" + dbURL[len(dbURL)-20:]
	}
	return dbURL
}
