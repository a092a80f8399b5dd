package ejector

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/ethpandaops/validator-ejector/pkg/execution"
)

// Exit status sources
const (
	StatusSourceConsensus = "consensus"
	StatusSourceExecution = "execution"
	StatusSourceBoth      = "both"
)

// StatusOracle decides whether a validator already exited or is exiting.
type StatusOracle interface {
	IsExiting(ctx context.Context, contract common.Address, event *execution.ExitRequestEvent) (bool, error)
}

// BeaconStatus is the consensus layer status lookup.
type BeaconStatus interface {
	IsExiting(ctx context.Context, pubkey string) (bool, error)
}

// ContractStatus is the node manager's on-chain status lookup.
type ContractStatus interface {
	ValidatorStatus(ctx context.Context, contract common.Address, pubkey []byte) (execution.ValidatorStatus, error)
}

// ConsensusOracle asks the beacon node.
type ConsensusOracle struct {
	Beacon BeaconStatus
}

func (o *ConsensusOracle) IsExiting(ctx context.Context, _ common.Address, event *execution.ExitRequestEvent) (bool, error) {
	return o.Beacon.IsExiting(ctx, event.PubkeyHex())
}

// ExecutionOracle reads the node manager contract.
type ExecutionOracle struct {
	Contract ContractStatus
}

func (o *ExecutionOracle) IsExiting(ctx context.Context, contract common.Address, event *execution.ExitRequestEvent) (bool, error) {
	status, err := o.Contract.ValidatorStatus(ctx, contract, event.Pubkey)
	if err != nil {
		return false, err
	}

	return status >= execution.ValidatorStatusExiting, nil
}

// AnyOracle reports exiting as soon as one of its oracles does.
type AnyOracle []StatusOracle

func (o AnyOracle) IsExiting(ctx context.Context, contract common.Address, event *execution.ExitRequestEvent) (bool, error) {
	for _, oracle := range o {
		exiting, err := oracle.IsExiting(ctx, contract, event)
		if err != nil {
			return false, err
		}

		if exiting {
			return true, nil
		}
	}

	return false, nil
}

// NewStatusOracle selects the authoritative status source.
func NewStatusOracle(source string, beacon BeaconStatus, contract ContractStatus) (StatusOracle, error) {
	switch source {
	case "", StatusSourceConsensus:
		return &ConsensusOracle{Beacon: beacon}, nil
	case StatusSourceExecution:
		return &ExecutionOracle{Contract: contract}, nil
	case StatusSourceBoth:
		return AnyOracle{&ConsensusOracle{Beacon: beacon}, &ExecutionOracle{Contract: contract}}, nil
	default:
		return nil, errors.Errorf("unknown exit status source: %s", source)
	}
}
