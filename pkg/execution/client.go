package execution

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const finalizedTag = "finalized"

var (
	// ErrResolution is returned when the locator does not yield a usable contract address
	ErrResolution = errors.New("unable to resolve contract address using the locator")

	// ErrRPC wraps transport and decoding failures of execution node calls
	ErrRPC = errors.New("execution node rpc error")
)

// Client is the execution layer gateway.
type Client struct {
	rpc     *rpc.Client
	locator common.Address
	log     logrus.FieldLogger
}

// NewClient dials the execution node at url. httpClient may be nil.
func NewClient(ctx context.Context, url string, locator common.Address, httpClient *http.Client, log logrus.FieldLogger) (*Client, error) {
	opts := []rpc.ClientOption{}
	if httpClient != nil {
		opts = append(opts, rpc.WithHTTPClient(httpClient))
	}

	c, err := rpc.DialOptions(ctx, strings.TrimSuffix(url, "/"), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial execution node")
	}

	return &Client{
		rpc:     c,
		locator: locator,
		log:     log.WithField("component", "execution"),
	}, nil
}

// Close closes the underlying rpc client.
func (c *Client) Close() {
	c.rpc.Close()
}

func rpcError(err error, method string) error {
	return errors.Wrapf(ErrRPC, "%s: %v", method, err)
}

// Syncing reports whether the execution node is still syncing.
func (c *Client) Syncing(ctx context.Context) (bool, error) {
	var raw json.RawMessage
	if err := c.rpc.CallContext(ctx, &raw, "eth_syncing"); err != nil {
		return false, rpcError(err, "eth_syncing")
	}

	c.log.Debug("Fetched syncing status")

	// eth_syncing returns false or a progress object
	return strings.TrimSpace(string(raw)) != "false", nil
}

// CheckSync logs a warning when the node is syncing.
func (c *Client) CheckSync(ctx context.Context) error {
	syncing, err := c.Syncing(ctx)
	if err != nil {
		return err
	}

	if syncing {
		c.log.Warn("Execution node is still syncing! Proceed with caution.")
	}

	return nil
}

// LatestFinalizedBlock returns the number of the latest finalized block.
func (c *Client) LatestFinalizedBlock(ctx context.Context) (uint64, error) {
	var head *struct {
		Number hexutil.Uint64 `json:"number"`
	}

	if err := c.rpc.CallContext(ctx, &head, "eth_getBlockByNumber", finalizedTag, false); err != nil {
		return 0, rpcError(err, "eth_getBlockByNumber")
	}

	if head == nil {
		return 0, rpcError(errors.New("finalized block not found"), "eth_getBlockByNumber")
	}

	c.log.WithField("block", uint64(head.Number)).Debug("Fetched latest finalized block")

	return uint64(head.Number), nil
}

// ResolveContractAddress resolves the DepositNodeManager address from the locator.
func (c *Client) ResolveContractAddress(ctx context.Context) (common.Address, error) {
	data, err := encodeGetAddress(locatorContractKey)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "failed to encode getAddress call")
	}

	res, err := c.call(ctx, c.locator, data)
	if err != nil {
		c.log.WithError(err).Error("Unable to resolve contract address")

		return common.Address{}, errors.Wrapf(ErrResolution, "%v", err)
	}

	addr, err := decodeGetAddress(res)
	if err != nil {
		return common.Address{}, errors.Wrapf(ErrResolution, "%v", err)
	}

	if addr == (common.Address{}) {
		return common.Address{}, errors.Wrap(ErrResolution, "locator returned the zero address")
	}

	c.log.WithField("address", addr.Hex()).Info("Resolved DepositNodeManager contract address using the locator")

	return addr, nil
}

// ExitRequestLogs fetches and decodes SigningKeyExiting logs emitted by
// contract within [from, to]. Results keep the node's log order.
func (c *Client) ExitRequestLogs(ctx context.Context, contract common.Address, from, to uint64) ([]*ExitRequestEvent, error) {
	filter := map[string]interface{}{
		"fromBlock": hexutil.EncodeUint64(from),
		"toBlock":   hexutil.EncodeUint64(to),
		"address":   contract,
		"topics":    [][]common.Hash{{ExitEventTopic}},
	}

	var logs []types.Log
	if err := c.rpc.CallContext(ctx, &logs, "eth_getLogs", filter); err != nil {
		return nil, rpcError(err, "eth_getLogs")
	}

	c.log.WithField("amount", len(logs)).Info("Loaded SigningKeyExiting events")

	events := make([]*ExitRequestEvent, 0, len(logs))

	for i := range logs {
		event, err := DecodeExitRequest(&logs[i])
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode log %d of tx %s", logs[i].Index, logs[i].TxHash.Hex())
		}

		events = append(events, event)
	}

	return events, nil
}

// TransactionSender returns the sender of the transaction with the given hash.
func (c *Client) TransactionSender(ctx context.Context, hash common.Hash) (common.Address, error) {
	var tx *struct {
		From common.Address `json:"from"`
	}

	if err := c.rpc.CallContext(ctx, &tx, "eth_getTransactionByHash", hash); err != nil {
		return common.Address{}, rpcError(err, "eth_getTransactionByHash")
	}

	if tx == nil {
		return common.Address{}, errors.Errorf("transaction %s not found", hash.Hex())
	}

	return tx.From, nil
}

// ValidatorStatus reads the node manager's status for pubkey at the
// finalized block.
func (c *Client) ValidatorStatus(ctx context.Context, contract common.Address, pubkey []byte) (ValidatorStatus, error) {
	data, err := encodeGetNodeValidatorByPubkey(pubkey)
	if err != nil {
		return ValidatorStatusUnknown, errors.Wrap(err, "failed to encode getNodeValidatorByPubkey call")
	}

	res, err := c.call(ctx, contract, data)
	if err != nil {
		return ValidatorStatusUnknown, err
	}

	return decodeGetNodeValidatorByPubkey(res)
}

func (c *Client) call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	msg := map[string]interface{}{
		"to":   to,
		"data": hexutil.Bytes(data),
	}

	var res hexutil.Bytes
	if err := c.rpc.CallContext(ctx, &res, "eth_call", msg, finalizedTag); err != nil {
		return nil, rpcError(err, "eth_call")
	}

	return res, nil
}
