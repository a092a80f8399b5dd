package messages

import (
	"context"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/prysm/v5/beacon-chain/core/signing"
	"github.com/prysmaticlabs/prysm/v5/consensus-types/primitives"
	"github.com/prysmaticlabs/prysm/v5/encoding/bytesutil"
	ethpb "github.com/prysmaticlabs/prysm/v5/proto/prysm/v1alpha1"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-ejector/pkg/consensus"
)

// ErrInvalidMessage marks a message that is malformed or carries a bad signature
var ErrInvalidMessage = errors.New("invalid exit message")

// BeaconReader is the consensus layer view needed to verify exit messages.
type BeaconReader interface {
	ValidatorByIndex(ctx context.Context, index uint64) (*consensus.Validator, error)
	Genesis(ctx context.Context) (*consensus.Genesis, error)
	Spec(ctx context.Context) (*consensus.Spec, error)
}

// Verifier checks exit message signatures against the validator pubkeys
// known to the consensus layer.
type Verifier struct {
	beacon  BeaconReader
	log     logrus.FieldLogger
	network *Network

	domain []byte
}

// NewVerifier creates a Verifier.
func NewVerifier(beacon BeaconReader, log logrus.FieldLogger) *Verifier {
	return &Verifier{
		beacon: beacon,
		log:    log.WithField("component", "verifier"),
	}
}

// WithNetwork pins the verifier to a known network. The consensus node must
// then report the same chain.
func (v *Verifier) WithNetwork(network *Network) *Verifier {
	v.network = network

	return v
}

// Domain returns the voluntary exit signature domain. Since Deneb exits are
// always signed with the Capella fork version.
func (v *Verifier) Domain(ctx context.Context) ([]byte, error) {
	if v.domain != nil {
		return v.domain, nil
	}

	genesis, err := v.beacon.Genesis(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch genesis")
	}

	spec, err := v.beacon.Spec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch beacon spec")
	}

	root, err := hexutil.Decode(genesis.GenesisValidatorsRoot)
	if err != nil {
		return nil, errors.Wrap(err, "invalid genesis validators root")
	}

	forkVersion, err := hexutil.Decode(spec.CapellaForkVersion)
	if err != nil {
		return nil, errors.Wrap(err, "invalid capella fork version")
	}

	domainType, err := hexutil.Decode(spec.DomainVoluntaryExit)
	if err != nil {
		return nil, errors.Wrap(err, "invalid voluntary exit domain")
	}

	if v.network != nil {
		if err := v.network.check(strings.ToLower(genesis.GenesisValidatorsRoot), forkVersion); err != nil {
			return nil, err
		}
	}

	domain, err := signing.ComputeDomain(bytesutil.ToBytes4(domainType), forkVersion, root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute domain")
	}

	v.domain = domain

	return domain, nil
}

// toProto converts a JSON exit message into its protobuf form
func toProto(msg *ExitMessage) (*ethpb.SignedVoluntaryExit, error) {
	epoch, err := strconv.ParseUint(msg.Message.Epoch, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid epoch")
	}

	validatorIndex, err := strconv.ParseUint(msg.Message.ValidatorIndex, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "invalid validator index")
	}

	signature, err := hexutil.Decode(msg.Signature)
	if err != nil {
		return nil, errors.Wrap(err, "invalid signature")
	}

	return &ethpb.SignedVoluntaryExit{
		Exit: &ethpb.VoluntaryExit{
			Epoch:          primitives.Epoch(epoch),
			ValidatorIndex: primitives.ValidatorIndex(validatorIndex),
		},
		Signature: signature,
	}, nil
}

// VerifyOne verifies a single message and returns the validator pubkey.
func (v *Verifier) VerifyOne(ctx context.Context, msg *ExitMessage) (string, error) {
	domain, err := v.Domain(ctx)
	if err != nil {
		return "", err
	}

	exit, err := toProto(msg)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidMessage, "%v", err)
	}

	validator, err := v.beacon.ValidatorByIndex(ctx, uint64(exit.Exit.ValidatorIndex))
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch validator %d", exit.Exit.ValidatorIndex)
	}

	pubkey, err := hexutil.Decode(validator.Validator.Pubkey)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidMessage, "invalid validator pubkey: %v", err)
	}

	if err := signing.VerifySigningRoot(exit.Exit, pubkey, exit.Signature, domain); err != nil {
		return "", errors.Wrapf(ErrInvalidMessage, "signature check failed for validator %d: %v", exit.Exit.ValidatorIndex, err)
	}

	return strings.ToLower(validator.Validator.Pubkey), nil
}

// Verify returns the subset of messages with a valid signature. Messages for
// unknown validators or with a bad signature are logged and dropped; other
// consensus layer failures abort verification.
func (v *Verifier) Verify(ctx context.Context, msgs []*ExitMessage) (*VerifiedSet, error) {
	if _, err := v.Domain(ctx); err != nil {
		return nil, err
	}

	valid := make([]*ExitMessage, 0, len(msgs))
	pubkeys := make([]string, 0, len(msgs))

	for _, msg := range msgs {
		log := v.log.WithField("validator_index", msg.Message.ValidatorIndex)

		pubkey, err := v.VerifyOne(ctx, msg)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			if errors.Is(err, consensus.ErrValidatorNotFound) || errors.Is(err, ErrInvalidMessage) {
				log.WithError(err).Warn("Dropping invalid exit message")

				continue
			}

			return nil, err
		}

		log.Debug("Exit message verified")

		valid = append(valid, msg)
		pubkeys = append(pubkeys, pubkey)
	}

	v.log.WithFields(logrus.Fields{
		"verified": len(valid),
		"total":    len(msgs),
	}).Info("Exit messages verified")

	return NewVerifiedSet(valid, pubkeys), nil
}
