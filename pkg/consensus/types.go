package consensus

// Validator statuses as reported by the beacon node API
const (
	StatusPendingInitialized = "pending_initialized"
	StatusPendingQueued      = "pending_queued"
	StatusActiveOngoing      = "active_ongoing"
	StatusActiveExiting      = "active_exiting"
	StatusActiveSlashed      = "active_slashed"
	StatusExitedUnslashed    = "exited_unslashed"
	StatusExitedSlashed      = "exited_slashed"
	StatusWithdrawalPossible = "withdrawal_possible"
	StatusWithdrawalDone     = "withdrawal_done"
)

var exitingStatuses = map[string]bool{
	StatusActiveExiting:      true,
	StatusActiveSlashed:      true,
	StatusExitedUnslashed:    true,
	StatusExitedSlashed:      true,
	StatusWithdrawalPossible: true,
	StatusWithdrawalDone:     true,
}

// IsExitingStatus reports whether status means the validator is exiting or has exited.
func IsExitingStatus(status string) bool {
	return exitingStatuses[status]
}

// Validator is a single entry of /eth/v1/beacon/states/{state}/validators
type Validator struct {
	Index     string `json:"index"`
	Status    string `json:"status"`
	Validator struct {
		Pubkey                string `json:"pubkey"`
		WithdrawalCredentials string `json:"withdrawal_credentials"`
		ActivationEpoch       string `json:"activation_epoch"`
		ExitEpoch             string `json:"exit_epoch"`
	} `json:"validator"`
}

// Genesis holds the beacon genesis details needed for signature domains
type Genesis struct {
	GenesisTime           string `json:"genesis_time"`
	GenesisValidatorsRoot string `json:"genesis_validators_root"`
	GenesisForkVersion    string `json:"genesis_fork_version"`
}

// SignedVoluntaryExit is the JSON structure of a signed voluntary exit
type SignedVoluntaryExit struct {
	Message struct {
		Epoch          string `json:"epoch"`
		ValidatorIndex string `json:"validator_index"`
	} `json:"message"`
	Signature string `json:"signature"`
}

// Spec holds the subset of /eth/v1/config/spec needed to verify exits
type Spec struct {
	CapellaForkVersion  string `json:"CAPELLA_FORK_VERSION"`
	DomainVoluntaryExit string `json:"DOMAIN_VOLUNTARY_EXIT"`
}
