package messages

import (
	"strconv"

	"github.com/ethpandaops/validator-ejector/pkg/consensus"
)

// ExitMessage is a pre-signed voluntary exit
type ExitMessage = consensus.SignedVoluntaryExit

// VerifiedSet is the set of exit messages that passed signature
// verification, keyed by validator index.
type VerifiedSet struct {
	Messages []*ExitMessage
	Pubkeys  []string

	byIndex map[uint64]*ExitMessage
}

// NewVerifiedSet indexes messages by validator index. pubkeys must be
// aligned with messages.
func NewVerifiedSet(messages []*ExitMessage, pubkeys []string) *VerifiedSet {
	byIndex := make(map[uint64]*ExitMessage, len(messages))

	for _, msg := range messages {
		index, err := strconv.ParseUint(msg.Message.ValidatorIndex, 10, 64)
		if err != nil {
			continue
		}

		byIndex[index] = msg
	}

	return &VerifiedSet{
		Messages: messages,
		Pubkeys:  pubkeys,
		byIndex:  byIndex,
	}
}

// Len returns the number of verified messages
func (s *VerifiedSet) Len() int {
	if s == nil {
		return 0
	}

	return len(s.Messages)
}

// Lookup returns the verified message for a validator index.
func (s *VerifiedSet) Lookup(index uint64) (*ExitMessage, bool) {
	if s == nil {
		return nil, false
	}

	msg, ok := s.byIndex[index]

	return msg, ok
}

// Left returns the number of messages for validators with an index above
// last. When hasLast is false every message counts.
func (s *VerifiedSet) Left(last uint64, hasLast bool) int {
	if s == nil {
		return 0
	}

	if !hasLast {
		return len(s.byIndex)
	}

	left := 0

	for index := range s.byIndex {
		if index > last {
			left++
		}
	}

	return left
}
