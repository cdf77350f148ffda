package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openbridge-labs/bridge-relay/internal/chain"
	"github.com/openbridge-labs/bridge-relay/internal/config"
	"github.com/openbridge-labs/bridge-relay/internal/engine"
	"github.com/openbridge-labs/bridge-relay/internal/logging"
	"github.com/openbridge-labs/bridge-relay/internal/metrics"
	"github.com/openbridge-labs/bridge-relay/internal/ops"
	"github.com/openbridge-labs/bridge-relay/internal/relay"
	"github.com/openbridge-labs/bridge-relay/internal/retry"
	"github.com/openbridge-labs/bridge-relay/internal/scanner"
	"github.com/openbridge-labs/bridge-relay/internal/storage"
)

var (
	flagOnce   bool
	flagDryRun bool
	flagOps    string
)

func init() {
	runCmd.Flags().BoolVar(&flagOnce, "once", false, "Process one cycle and exit")
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Scan but do not deliver")
	runCmd.Flags().StringVar(&flagOps, "health", "", "Operational HTTP address for /healthz and /metrics (e.g., :8080)")
}

// relayStore is what run needs from either storage backend.
type relayStore interface {
	scanner.CursorStore
	relay.ProcessedStore
	Ping(ctx context.Context) error
	Close() error
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scan and relay loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.FromEnv(envPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		log := logging.NewWithLevel(cfg.LogLevel, cfg.LogFormat)
		log.Info("state transition", "state", engine.StateInitializing)

		var store relayStore
		if cfg.DBPath != "" {
			s, err := storage.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			store = s
			log.Info("using durable store", "path", cfg.DBPath)
		} else {
			store = storage.NewMemory()
			log.Warn("DB_PATH not set; cursor and dedup state are lost on restart")
		}
		defer store.Close()

		client, err := chain.Dial(ctx, cfg.SourceRPCURL)
		if err != nil {
			return fmt.Errorf("connect source ledger: %w", err)
		}
		defer client.Close()
		log.Info("connected to source ledger", "chain_id", client.SourceChainID())

		decoder, err := chain.NewDecoder(cfg.BridgeContractAddress)
		if err != nil {
			return fmt.Errorf("build decoder: %w", err)
		}

		sc := scanner.New(client, decoder, store,
			cfg.StartBlock, cfg.Confirmations, cfg.MaxBlockRange,
			log.With("component", "scanner"))

		policy := retry.Default()
		policy.MaxAttempts = cfg.RelayMaxAttempts
		relayer, err := relay.NewRelayer(cfg.DestinationEndpoint, cfg.APIKey,
			cfg.RelayTimeout, policy, log.With("component", "relayer"))
		if err != nil {
			return fmt.Errorf("build relayer: %w", err)
		}

		tracker := relay.NewTracker(store, relayer, client.SourceChainID(),
			log.With("component", "tracker"))

		mtr := metrics.Init()

		if flagOps != "" {
			srv := ops.Serve(flagOps, ops.Checker{
				StorePing: store.Ping,
				RPCPing: func(ctx context.Context) error {
					_, err := client.BlockNumber(ctx)
					return err
				},
			}, log.With("component", "ops"))
			log.Info("ops server enabled", "addr", flagOps)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = ops.Shutdown(shutdownCtx, srv)
			}()
		}

		orchestrator := engine.New(sc, tracker, engine.Options{
			PollInterval: cfg.PollInterval,
			Cooldown:     cfg.RecoveryCooldown,
			Concurrency:  cfg.RelayConcurrency,
			Once:         flagOnce,
			DryRun:       flagDryRun,
			Logger:       log.With("component", "orchestrator"),
			Metrics:      mtr,
		})

		return orchestrator.Run(ctx)
	},
}
