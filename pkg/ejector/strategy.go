package ejector

import (
	"context"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ethpandaops/validator-ejector/pkg/consensus"
	"github.com/ethpandaops/validator-ejector/pkg/execution"
	"github.com/ethpandaops/validator-ejector/pkg/messages"
)

// Exit modes
const (
	ModeMessage      = "message"
	ModeWebhookSend  = "webhook"
	ModeWebhookFetch = "webhook-fetch"
)

// ErrMessageNotFound is returned when no verified exit message exists for a
// requested validator
var ErrMessageNotFound = errors.New("no exit message available for validator")

// Strategy performs the exit action for one validator.
type Strategy interface {
	Mode() string
	Exit(ctx context.Context, event *execution.ExitRequestEvent, set *messages.VerifiedSet) error
}

// ExitSubmitter broadcasts a signed exit to the consensus layer.
type ExitSubmitter interface {
	SubmitExit(ctx context.Context, exit *consensus.SignedVoluntaryExit) error
}

// EventSender notifies the webhook node of an exit request.
type EventSender interface {
	SendEvent(ctx context.Context, event *execution.ExitRequestEvent) error
}

// MessageFetcher retrieves a decrypted exit message from the webhook node.
type MessageFetcher interface {
	GetExitMessage(ctx context.Context, index uint64) (string, error)
}

// MessageVerifier checks a single exit message signature.
type MessageVerifier interface {
	VerifyOne(ctx context.Context, msg *messages.ExitMessage) (string, error)
}

// MessageStrategy broadcasts a pre-signed message from the verified set.
type MessageStrategy struct {
	Submitter ExitSubmitter
}

func (s *MessageStrategy) Mode() string { return ModeMessage }

func (s *MessageStrategy) Exit(ctx context.Context, event *execution.ExitRequestEvent, set *messages.VerifiedSet) error {
	msg, ok := set.Lookup(event.ValidatorIndex)
	if !ok {
		return errors.Wrapf(ErrMessageNotFound, "validator %d", event.ValidatorIndex)
	}

	return s.Submitter.SubmitExit(ctx, msg)
}

// WebhookSendStrategy hands the exit request to the webhook node.
type WebhookSendStrategy struct {
	Sender EventSender
}

func (s *WebhookSendStrategy) Mode() string { return ModeWebhookSend }

func (s *WebhookSendStrategy) Exit(ctx context.Context, event *execution.ExitRequestEvent, _ *messages.VerifiedSet) error {
	return s.Sender.SendEvent(ctx, event)
}

// WebhookFetchStrategy pulls the encrypted exit message from the webhook
// node, verifies it and broadcasts it.
type WebhookFetchStrategy struct {
	Fetcher   MessageFetcher
	Verifier  MessageVerifier
	Submitter ExitSubmitter
}

func (s *WebhookFetchStrategy) Mode() string { return ModeWebhookFetch }

func (s *WebhookFetchStrategy) Exit(ctx context.Context, event *execution.ExitRequestEvent, _ *messages.VerifiedSet) error {
	raw, err := s.Fetcher.GetExitMessage(ctx, event.ValidatorIndex)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch exit message for validator %d", event.ValidatorIndex)
	}

	msg, err := messages.ParseMessage([]byte(raw))
	if err != nil {
		return err
	}

	if msg.Message.ValidatorIndex != strconv.FormatUint(event.ValidatorIndex, 10) {
		return errors.Errorf("fetched exit message is for validator %s, expected %d", msg.Message.ValidatorIndex, event.ValidatorIndex)
	}

	if _, err := s.Verifier.VerifyOne(ctx, msg); err != nil {
		return err
	}

	return s.Submitter.SubmitExit(ctx, msg)
}
