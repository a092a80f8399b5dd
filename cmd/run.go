package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/validator-ejector/pkg/config"
	"github.com/ethpandaops/validator-ejector/pkg/consensus"
	"github.com/ethpandaops/validator-ejector/pkg/ejector"
	"github.com/ethpandaops/validator-ejector/pkg/execution"
	"github.com/ethpandaops/validator-ejector/pkg/job"
	"github.com/ethpandaops/validator-ejector/pkg/messages"
	"github.com/ethpandaops/validator-ejector/pkg/metrics"
	"github.com/ethpandaops/validator-ejector/pkg/server"
	"github.com/ethpandaops/validator-ejector/pkg/transport"
	"github.com/ethpandaops/validator-ejector/pkg/webhook"
)

const shutdownTimeout = 5 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs the validator ejector.",
	Long: `Runs the validator ejector. Configuration is read from the environment
(and the env file). The ejector scans the last BLOCKS_PRELOAD finalized blocks
once, then the last BLOCKS_LOOP blocks every JOB_INTERVAL milliseconds.`,
	RunE: runEjector,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runEjector(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.NewViper())
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	if err := configureLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(logrus.Fields{
		"version": Release,
		"mode":    cfg.Mode(),
		"dry_run": cfg.DryRun,
	}).Info("Starting validator ejector")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := metrics.New(reg)

	el, err := execution.NewClient(ctx, cfg.ExecutionNode, cfg.LocatorAddress, transport.NewNodeClient(log, m.ExecutionRequestDuration), log)
	if err != nil {
		return err
	}
	defer el.Close()

	cl := consensus.NewBeaconAPI(cfg.ConsensusNode, transport.NewNodeClient(log, m.ConsensusRequestDuration), log)

	if err := el.CheckSync(ctx); err != nil {
		return errors.Wrap(err, "failed to check execution node sync status")
	}

	if err := cl.CheckSync(ctx); err != nil {
		return errors.Wrap(err, "failed to check consensus node sync status")
	}

	srv := server.New(server.Options{
		Port:        cfg.HTTPPort,
		Metrics:     cfg.RunMetrics,
		HealthCheck: cfg.RunHealthCheck,
	}, reg, log)

	if srv.Enabled() {
		if err := srv.Start(); err != nil {
			return err
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Stop(shutdownCtx); err != nil {
				log.WithError(err).Warn("Failed to stop HTTP server")
			}
		}()
	}

	verifier, err := newVerifier(cfg.Network, cl)
	if err != nil {
		return err
	}

	var (
		strategy ejector.Strategy
		set      *messages.VerifiedSet
	)

	switch cfg.Mode() {
	case ejector.ModeMessage:
		set, err = loadMessages(ctx, cfg.MessagesLocation, cfg.MessagesPassword, verifier)
		if err != nil {
			return err
		}

		m.UpdateLeftMessages(set.Len(), set.Len())

		strategy = &ejector.MessageStrategy{Submitter: cl}
	default:
		hook, err := webhook.NewClient(webhook.Config{
			Node:          cfg.Webhook.Node,
			Auth:          cfg.Webhook.Auth,
			Get:           cfg.Webhook.Get,
			Send:          cfg.Webhook.Send,
			AppName:       cfg.Webhook.AppName,
			PrivateKey:    cfg.Webhook.PrivateKey,
			DecryptSecret: cfg.Webhook.DecryptSecret,
		}, transport.NewWebhookClient(cfg.IgnoreFirstCert), log)
		if err != nil {
			return err
		}
		defer hook.Close()

		if cfg.Mode() == ejector.ModeWebhookSend {
			strategy = &ejector.WebhookSendStrategy{Sender: hook}
		} else {
			strategy = &ejector.WebhookFetchStrategy{Fetcher: hook, Verifier: verifier, Submitter: cl}
		}

		log.Info("Running in webhook mode, exit messages are not loaded from disk")
	}

	oracle, err := ejector.NewStatusOracle(cfg.ExitStatusSource, cl, el)
	if err != nil {
		return err
	}

	engine, err := ejector.NewEngine(el, oracle, strategy, el, m, ejector.Options{
		DryRun:    cfg.DryRun,
		Allowlist: cfg.Allowlist(),
	}, log)
	if err != nil {
		return err
	}

	runner, err := job.NewRunner(func(ctx context.Context, size uint64) error {
		_, err := engine.Run(ctx, size, set)

		return err
	}, job.Config{
		PreloadBlocks: cfg.BlocksPreload,
		LoopBlocks:    cfg.BlocksLoop,
		Interval:      cfg.JobInterval,
	}, m, log)
	if err != nil {
		return err
	}

	if cfg.ExitOnJobError {
		runner.OnError = job.StopOnError
	}

	if err := runner.Run(ctx); err != nil {
		return err
	}

	log.Info("Validator ejector stopped")

	return nil
}

func newVerifier(network string, beacon messages.BeaconReader) (*messages.Verifier, error) {
	verifier := messages.NewVerifier(beacon, log)

	if network == "" {
		return verifier, nil
	}

	pinned, err := messages.LookupNetwork(network)
	if err != nil {
		return nil, err
	}

	return verifier.WithNetwork(pinned), nil
}

func loadMessages(ctx context.Context, path, password string, verifier *messages.Verifier) (*messages.VerifiedSet, error) {
	loaded, err := messages.NewStore(messages.NewDirReader(path), password, log).Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load exit messages")
	}

	set, err := verifier.Verify(ctx, loaded)
	if err != nil {
		return nil, errors.Wrap(err, "failed to verify exit messages")
	}

	return set, nil
}
