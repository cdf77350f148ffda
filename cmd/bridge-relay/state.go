package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openbridge-labs/bridge-relay/internal/config"
	"github.com/openbridge-labs/bridge-relay/internal/scanner"
	"github.com/openbridge-labs/bridge-relay/internal/storage"
)

type stateReport struct {
	LastScannedBlock *uint64  `yaml:"last_scanned_block"`
	ProcessedCount   int64    `yaml:"processed_count"`
	RecentProcessed  []string `yaml:"recent_processed,omitempty"`
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Show the persisted scan cursor and processed set",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.FromEnv(envPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.DBPath == "" {
			return errors.New("state requires DB_PATH; the in-memory store has nothing persisted")
		}

		store, err := storage.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer store.Close()

		report := stateReport{}
		if h, ok, err := store.GetCursor(ctx, scanner.SourceID); err != nil {
			return err
		} else if ok {
			report.LastScannedBlock = &h
		}
		if report.ProcessedCount, err = store.CountProcessed(ctx); err != nil {
			return err
		}
		if report.RecentProcessed, err = store.RecentProcessed(ctx, 10); err != nil {
			return err
		}

		out, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshal state: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}
