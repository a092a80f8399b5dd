package ejector

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-ejector/pkg/execution"
	"github.com/ethpandaops/validator-ejector/pkg/messages"
	"github.com/ethpandaops/validator-ejector/pkg/metrics"
)

// Gateway is the execution layer view used by the engine.
type Gateway interface {
	ResolveContractAddress(ctx context.Context) (common.Address, error)
	LatestFinalizedBlock(ctx context.Context) (uint64, error)
	ExitRequestLogs(ctx context.Context, contract common.Address, from, to uint64) ([]*execution.ExitRequestEvent, error)
}

// SenderLookup returns the sender of a transaction.
type SenderLookup interface {
	TransactionSender(ctx context.Context, hash common.Hash) (common.Address, error)
}

// BlockWindow is an inclusive block range ending at a finalized block
type BlockWindow struct {
	FromBlock uint64
	ToBlock   uint64
}

// NewBlockWindow returns the window of size blocks ending at toBlock.
func NewBlockWindow(toBlock, size uint64) BlockWindow {
	from := uint64(0)
	if toBlock > size {
		from = toBlock - size
	}

	return BlockWindow{FromBlock: from, ToBlock: toBlock}
}

// Result summarises one engine pass
type Result struct {
	Window    BlockWindow
	Events    int
	Skipped   int
	Succeeded int
	Failed    int
	Rejected  int
}

// Options tune the engine
type Options struct {
	DryRun bool

	// Allowlist holds the addresses allowed to emit exit requests. Empty
	// disables the check.
	Allowlist []common.Address
}

// Engine decides and dispatches the exit action for every exit request in
// a block window.
type Engine struct {
	gateway  Gateway
	oracle   StatusOracle
	strategy Strategy
	senders  SenderLookup
	metrics  *metrics.Metrics
	opts     Options
	log      logrus.FieldLogger

	allowlist map[common.Address]bool
}

// NewEngine creates an Engine. senders may be nil when no allowlist is set.
func NewEngine(gateway Gateway, oracle StatusOracle, strategy Strategy, senders SenderLookup, m *metrics.Metrics, opts Options, log logrus.FieldLogger) (*Engine, error) {
	if len(opts.Allowlist) > 0 && senders == nil {
		return nil, errors.New("allowlist configured without a transaction lookup")
	}

	allowlist := make(map[common.Address]bool, len(opts.Allowlist))
	for _, addr := range opts.Allowlist {
		allowlist[addr] = true
	}

	return &Engine{
		gateway:   gateway,
		oracle:    oracle,
		strategy:  strategy,
		senders:   senders,
		metrics:   m,
		opts:      opts,
		log:       log.WithField("component", "ejector"),
		allowlist: allowlist,
	}, nil
}

// Run scans the last size finalized blocks and handles every exit request
// found there. Failing to resolve the contract, read the finalized block or
// load the logs aborts the pass; failures of a single event are counted and
// the pass continues.
func (e *Engine) Run(ctx context.Context, size uint64, set *messages.VerifiedSet) (*Result, error) {
	// re-resolved every pass to pick up contract upgrades without a restart
	contract, err := e.gateway.ResolveContractAddress(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve contract address")
	}

	toBlock, err := e.gateway.LatestFinalizedBlock(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch latest finalized block")
	}

	window := NewBlockWindow(toBlock, size)

	e.log.WithFields(logrus.Fields{
		"from_block": window.FromBlock,
		"to_block":   window.ToBlock,
		"size":       size,
	}).Info("Fetching exit request events")

	events, err := e.gateway.ExitRequestLogs(ctx, contract, window.FromBlock, window.ToBlock)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load exit request events")
	}

	result := &Result{Window: window, Events: len(events)}

	e.log.WithFields(logrus.Fields{
		"amount": len(events),
		"mode":   e.strategy.Mode(),
	}).Info("Handling exit requests")

	if len(e.allowlist) == 0 && len(events) > 0 {
		e.log.Warn("Skipping protocol exit requests security checks, no allowlist configured")
	}

	var (
		last    uint64
		hasLast bool
	)

	for i, event := range events {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		log := e.log.WithFields(logrus.Fields{
			"validator_index": event.ValidatorIndex,
			"pubkey":          event.PubkeyHex(),
			"progress":        fmt.Sprintf("%d/%d", i+1, len(events)),
		})

		handled, err := e.handle(ctx, contract, event, set, log)

		switch {
		case err != nil:
			log.WithError(err).Error("Unable to process exit")
			e.metrics.ExitActions.WithLabelValues(metrics.ResultError).Inc()

			result.Failed++
		case !handled:
			result.Skipped++
		default:
			e.metrics.ExitActions.WithLabelValues(metrics.ResultSuccess).Inc()

			result.Succeeded++
			last, hasLast = event.ValidatorIndex, true
		}
	}

	e.updateLeftMessages(set, last, hasLast)

	e.log.WithFields(logrus.Fields{
		"events":    result.Events,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
	}).Info("Job finished")

	return result, nil
}

// handle processes one event. It returns false when the event needs no
// action.
func (e *Engine) handle(ctx context.Context, contract common.Address, event *execution.ExitRequestEvent, set *messages.VerifiedSet, log logrus.FieldLogger) (bool, error) {
	if len(e.allowlist) > 0 {
		allowed, err := e.verifySender(ctx, event)
		if err != nil {
			return false, errors.Wrap(err, "failed to verify exit request sender")
		}

		if !allowed {
			log.WithField("tx", event.TxHash.Hex()).Warn("Exit request sent by an address outside the allowlist, skipping")

			return false, nil
		}
	}

	exiting, err := e.oracle.IsExiting(ctx, contract, event)
	if err != nil {
		return false, errors.Wrap(err, "failed to check validator status")
	}

	if exiting {
		log.Info("Validator is already exiting(ed), skipping")

		return false, nil
	}

	if e.opts.DryRun {
		log.Info("Not initiating an exit in dry run mode")

		return false, nil
	}

	if err := e.strategy.Exit(ctx, event, set); err != nil {
		return false, err
	}

	log.WithField("mode", e.strategy.Mode()).Info("Exit initiated")

	return true, nil
}

func (e *Engine) verifySender(ctx context.Context, event *execution.ExitRequestEvent) (bool, error) {
	sender, err := e.senders.TransactionSender(ctx, event.TxHash)
	if err != nil {
		e.metrics.EventSecurityVerification.WithLabelValues(metrics.ResultError).Inc()

		return false, err
	}

	if !e.allowlist[sender] {
		e.metrics.EventSecurityVerification.WithLabelValues(metrics.ResultError).Inc()

		return false, nil
	}

	e.metrics.EventSecurityVerification.WithLabelValues(metrics.ResultSuccess).Inc()

	return true, nil
}

// updateLeftMessages refreshes the left messages gauges. It never fails the pass.
func (e *Engine) updateLeftMessages(set *messages.VerifiedSet, last uint64, hasLast bool) {
	defer func() {
		if r := recover(); r != nil {
			e.log.WithField("panic", r).Error("Unable to update exit messages left metrics")
		}
	}()

	if set == nil {
		return
	}

	e.log.Debug("Updating exit messages left metrics")

	e.metrics.UpdateLeftMessages(set.Left(last, hasLast), set.Len())
}
