package execution

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// PubkeyLength is the length of a BLS validator public key
const PubkeyLength = 48

// ExitRequestEvent is a decoded SigningKeyExiting log.
type ExitRequestEvent struct {
	ValidatorIndex uint64
	Operator       common.Address
	Pubkey         []byte

	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
}

// PubkeyHex returns the 0x prefixed validator public key
func (e *ExitRequestEvent) PubkeyHex() string {
	return hexutil.Encode(e.Pubkey)
}

// WebhookPayload is the JSON body sent to the webhook send endpoint
type WebhookPayload struct {
	Index    uint64 `json:"index"`
	Operator string `json:"operator"`
	Pubkey   string `json:"pubkey"`
}

// Payload converts the event into its webhook representation.
func (e *ExitRequestEvent) Payload() WebhookPayload {
	return WebhookPayload{
		Index:    e.ValidatorIndex,
		Operator: e.Operator.Hex(),
		Pubkey:   e.PubkeyHex(),
	}
}
