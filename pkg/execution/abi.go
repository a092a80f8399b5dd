package execution

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

const (
	locatorContractKey = "DepositNodeManager"
	exitEventName      = "SigningKeyExiting"
)

const locatorABI = `[
	{"type":"function","name":"getAddress","stateMutability":"view",
	 "inputs":[{"name":"key","type":"bytes32"}],
	 "outputs":[{"name":"","type":"address"}]}
]`

const depositNodeManagerABI = `[
	{"type":"event","name":"SigningKeyExiting","anonymous":false,
	 "inputs":[
		{"name":"validatorId","type":"uint256","indexed":true},
		{"name":"operator","type":"address","indexed":true},
		{"name":"pubkey","type":"bytes","indexed":false}]},
	{"type":"function","name":"getNodeValidatorByPubkey","stateMutability":"view",
	 "inputs":[{"name":"pubkey","type":"bytes"}],
	 "outputs":[
		{"name":"validatorId","type":"uint256"},
		{"name":"operator","type":"address"},
		{"name":"status","type":"uint8"}]}
]`

// ValidatorStatus is the node manager's view of a validator.
type ValidatorStatus uint8

const (
	ValidatorStatusUnknown ValidatorStatus = iota
	ValidatorStatusDeposited
	ValidatorStatusActive
	ValidatorStatusExiting
	ValidatorStatusExited
)

var (
	locatorContract abi.ABI
	managerContract abi.ABI

	// ExitEventTopic is topic0 of SigningKeyExiting
	ExitEventTopic common.Hash
)

func init() {
	var err error

	locatorContract, err = abi.JSON(strings.NewReader(locatorABI))
	if err != nil {
		panic(err)
	}

	managerContract, err = abi.JSON(strings.NewReader(depositNodeManagerABI))
	if err != nil {
		panic(err)
	}

	ExitEventTopic = managerContract.Events[exitEventName].ID
}

// LocatorKey returns keccak256(abi.encodePacked("contract.address", name)).
func LocatorKey(name string) common.Hash {
	return crypto.Keccak256Hash([]byte("contract.address"), []byte(name))
}

func encodeGetAddress(name string) ([]byte, error) {
	return locatorContract.Pack("getAddress", LocatorKey(name))
}

func decodeGetAddress(data []byte) (common.Address, error) {
	out, err := locatorContract.Unpack("getAddress", data)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to unpack getAddress result")
	}

	if len(out) == 0 {
		return common.Address{}, errors.New("empty getAddress result")
	}

	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, errors.Errorf("unexpected getAddress result type %T", out[0])
	}

	return addr, nil
}

func encodeGetNodeValidatorByPubkey(pubkey []byte) ([]byte, error) {
	return managerContract.Pack("getNodeValidatorByPubkey", pubkey)
}

func decodeGetNodeValidatorByPubkey(data []byte) (ValidatorStatus, error) {
	out, err := managerContract.Unpack("getNodeValidatorByPubkey", data)
	if err != nil {
		return ValidatorStatusUnknown, errors.Wrap(err, "failed to unpack getNodeValidatorByPubkey result")
	}

	if len(out) != 3 {
		return ValidatorStatusUnknown, errors.Errorf("unexpected getNodeValidatorByPubkey result length %d", len(out))
	}

	status, ok := out[2].(uint8)
	if !ok {
		return ValidatorStatusUnknown, errors.Errorf("unexpected status type %T", out[2])
	}

	return ValidatorStatus(status), nil
}

// DecodeExitRequest decodes a SigningKeyExiting log.
func DecodeExitRequest(l *types.Log) (*ExitRequestEvent, error) {
	if len(l.Topics) != 3 {
		return nil, errors.Errorf("expected 3 topics, got %d", len(l.Topics))
	}

	if l.Topics[0] != ExitEventTopic {
		return nil, errors.Errorf("unexpected event topic %s", l.Topics[0].Hex())
	}

	validatorID := new(big.Int).SetBytes(l.Topics[1].Bytes())
	if !validatorID.IsUint64() {
		return nil, errors.Errorf("validator id %s overflows uint64", validatorID)
	}

	out, err := managerContract.Unpack(exitEventName, l.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to unpack event data")
	}

	if len(out) != 1 {
		return nil, errors.Errorf("unexpected event data length %d", len(out))
	}

	pubkey, ok := out[0].([]byte)
	if !ok {
		return nil, errors.Errorf("unexpected pubkey type %T", out[0])
	}

	if len(pubkey) != PubkeyLength {
		return nil, errors.Errorf("invalid pubkey length %d", len(pubkey))
	}

	return &ExitRequestEvent{
		ValidatorIndex: validatorID.Uint64(),
		Operator:       common.BytesToAddress(l.Topics[2].Bytes()),
		Pubkey:         pubkey,
		BlockNumber:    l.BlockNumber,
		TxHash:         l.TxHash,
		LogIndex:       l.Index,
	}, nil
}
