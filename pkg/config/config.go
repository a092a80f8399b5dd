package config

import (
	"encoding/json"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/ethpandaops/validator-ejector/pkg/ejector"
)

// Log formats
const (
	LogFormatSimple = "simple"
	LogFormatJSON   = "json"
)

// Environment keys
const (
	KeyExecutionNode     = "EXECUTION_NODE"
	KeyConsensusNode     = "CONSENSUS_NODE"
	KeyLocatorAddress    = "LOCATOR_ADDRESS"
	KeyNetwork           = "NETWORK"
	KeyMessagesLocation  = "MESSAGES_LOCATION"
	KeyMessagesPassword  = "MESSAGES_PASSWORD"
	KeyWebhookNode       = "VALIDATOR_WEBHOOK_NODE"
	KeyWebhookAuth       = "VALIDATOR_WEBHOOK_AUTH"
	KeyWebhookGet        = "VALIDATOR_WEBHOOK_GET"
	KeyWebhookSend       = "VALIDATOR_WEBHOOK_SEND"
	KeyWebhookPrivateKey = "VALIDATOR_WEBHOOK_PRIVATE_KEY"
	KeyWebhookAppName    = "VALIDATOR_WEBHOOK_APP_NAME"
	KeyWebhookDecrypt    = "VALIDATOR_WEBHOOK_DECRYPT_SECRET"
	KeyIgnoreFirstCert   = "IGNORE_FIRST_CERTIFICATION"
	KeyBlocksPreload     = "BLOCKS_PRELOAD"
	KeyBlocksLoop        = "BLOCKS_LOOP"
	KeyJobInterval       = "JOB_INTERVAL"
	KeyHTTPPort          = "HTTP_PORT"
	KeyRunMetrics        = "RUN_METRICS"
	KeyRunHealthCheck    = "RUN_HEALTH_CHECK"
	KeyDryRun            = "DRY_RUN"
	KeyExitStatusSource  = "EXIT_STATUS_SOURCE"
	KeyOracleAllowlist   = "ORACLE_ADDRESSES_ALLOWLIST"
	KeyDisableSecurity   = "DISABLE_SECURITY_DONT_USE_IN_PRODUCTION"
	KeyExitOnJobError    = "EXIT_ON_JOB_ERROR"
	KeyLoggerLevel       = "LOGGER_LEVEL"
	KeyLoggerFormat      = "LOGGER_FORMAT"
	KeyLoggerSecrets     = "LOGGER_SECRETS"

	fileSuffix = "_FILE"
)

const (
	defaultBlocksPreload = 50000  // ~7 days
	defaultBlocksLoop    = 900    // ~3 hours
	defaultJobIntervalMS = 384000 // 1 epoch
	defaultHTTPPort      = 8989
)

// secretKeys may be given inline or through a <KEY>_FILE path.
var secretKeys = []string{KeyMessagesPassword, KeyWebhookPrivateKey, KeyWebhookDecrypt}

// Webhook holds the webhook node settings
type Webhook struct {
	Node          string
	Auth          string
	Get           string
	Send          string
	PrivateKey    string
	AppName       string
	DecryptSecret string
}

// Config is the complete service configuration
type Config struct {
	ExecutionNode  string
	ConsensusNode  string
	LocatorAddress common.Address

	// Network optionally pins the chain exit messages are verified for
	Network string

	MessagesLocation string
	MessagesPassword string

	Webhook          Webhook
	IgnoreFirstCert  bool
	BlocksPreload    uint64
	BlocksLoop       uint64
	JobInterval      time.Duration
	HTTPPort         int
	RunMetrics       bool
	RunHealthCheck   bool
	DryRun           bool
	ExitStatusSource string
	OracleAllowlist  []common.Address
	DisableSecurity  bool
	ExitOnJobError   bool

	LoggerLevel   string
	LoggerFormat  string
	LoggerSecrets []string
}

// LoadEnvFile loads a .env file into the process environment. Variables
// already set are kept. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	return errors.Wrapf(godotenv.Load(path), "failed to load env file %s", path)
}

// NewViper returns a viper instance bound to the environment with every
// default set.
func NewViper() *viper.Viper {
	v := viper.New()

	v.AutomaticEnv()

	v.SetDefault(KeyBlocksPreload, defaultBlocksPreload)
	v.SetDefault(KeyBlocksLoop, defaultBlocksLoop)
	v.SetDefault(KeyJobInterval, defaultJobIntervalMS)
	v.SetDefault(KeyHTTPPort, defaultHTTPPort)
	v.SetDefault(KeyRunMetrics, false)
	v.SetDefault(KeyRunHealthCheck, true)
	v.SetDefault(KeyDryRun, false)
	v.SetDefault(KeyIgnoreFirstCert, false)
	v.SetDefault(KeyExitStatusSource, ejector.StatusSourceConsensus)
	v.SetDefault(KeyDisableSecurity, false)
	v.SetDefault(KeyExitOnJobError, false)
	v.SetDefault(KeyLoggerLevel, "info")
	v.SetDefault(KeyLoggerFormat, LogFormatSimple)

	return v
}

// Load reads and validates the configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	secrets := make(map[string]string, len(secretKeys))

	for _, key := range secretKeys {
		value, err := secret(v, key)
		if err != nil {
			return nil, err
		}

		secrets[key] = value
	}

	cfg := &Config{
		ExecutionNode:    strings.TrimSuffix(v.GetString(KeyExecutionNode), "/"),
		ConsensusNode:    strings.TrimSuffix(v.GetString(KeyConsensusNode), "/"),
		Network:          strings.ToLower(v.GetString(KeyNetwork)),
		MessagesLocation: v.GetString(KeyMessagesLocation),
		MessagesPassword: secrets[KeyMessagesPassword],
		Webhook: Webhook{
			Node:          strings.TrimSuffix(v.GetString(KeyWebhookNode), "/"),
			Auth:          v.GetString(KeyWebhookAuth),
			Get:           v.GetString(KeyWebhookGet),
			Send:          v.GetString(KeyWebhookSend),
			PrivateKey:    secrets[KeyWebhookPrivateKey],
			AppName:       v.GetString(KeyWebhookAppName),
			DecryptSecret: secrets[KeyWebhookDecrypt],
		},
		IgnoreFirstCert:  v.GetBool(KeyIgnoreFirstCert),
		BlocksPreload:    v.GetUint64(KeyBlocksPreload),
		BlocksLoop:       v.GetUint64(KeyBlocksLoop),
		JobInterval:      time.Duration(v.GetInt64(KeyJobInterval)) * time.Millisecond,
		HTTPPort:         v.GetInt(KeyHTTPPort),
		RunMetrics:       v.GetBool(KeyRunMetrics),
		RunHealthCheck:   v.GetBool(KeyRunHealthCheck),
		DryRun:           v.GetBool(KeyDryRun),
		ExitStatusSource: strings.ToLower(v.GetString(KeyExitStatusSource)),
		DisableSecurity:  v.GetBool(KeyDisableSecurity),
		ExitOnJobError:   v.GetBool(KeyExitOnJobError),
		LoggerLevel:      v.GetString(KeyLoggerLevel),
		LoggerFormat:     strings.ToLower(v.GetString(KeyLoggerFormat)),
	}

	locator := v.GetString(KeyLocatorAddress)
	if locator != "" {
		if !common.IsHexAddress(locator) {
			return nil, errors.Errorf("%s is not a valid address: %s", KeyLocatorAddress, locator)
		}

		cfg.LocatorAddress = common.HexToAddress(locator)
	}

	allowlist, err := addressList(v.GetString(KeyOracleAllowlist))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s", KeyOracleAllowlist)
	}

	cfg.OracleAllowlist = allowlist

	loggerSecrets, err := loggerSecrets(v)
	if err != nil {
		return nil, err
	}

	cfg.LoggerSecrets = loggerSecrets

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Mode returns the exit mode implied by the configuration. A messages
// directory selects message mode; otherwise a webhook send endpoint selects
// webhook mode, and a webhook get endpoint the fetch mode.
func (c *Config) Mode() string {
	switch {
	case c.MessagesLocation != "":
		return ejector.ModeMessage
	case c.Webhook.Send != "":
		return ejector.ModeWebhookSend
	default:
		return ejector.ModeWebhookFetch
	}
}

// Allowlist returns the effective exit request sender allowlist.
func (c *Config) Allowlist() []common.Address {
	if c.DisableSecurity {
		return nil
	}

	return c.OracleAllowlist
}

// Validate checks required settings for the selected mode.
func (c *Config) Validate() error {
	required := map[string]string{
		KeyExecutionNode: c.ExecutionNode,
		KeyConsensusNode: c.ConsensusNode,
	}

	if c.LocatorAddress == (common.Address{}) {
		required[KeyLocatorAddress] = ""
	}

	if c.MessagesLocation == "" {
		required[KeyWebhookNode] = c.Webhook.Node
		required[KeyWebhookAuth] = c.Webhook.Auth
		required[KeyWebhookPrivateKey] = c.Webhook.PrivateKey
		required[KeyWebhookAppName] = c.Webhook.AppName

		if c.Webhook.Send == "" {
			required[KeyWebhookGet] = c.Webhook.Get
			required[KeyWebhookDecrypt] = c.Webhook.DecryptSecret
		}
	}

	missing := make([]string, 0)

	for key, value := range required {
		if value == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)

		return errors.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.JobInterval <= 0 {
		return errors.Errorf("%s must be positive", KeyJobInterval)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return errors.Errorf("%s is out of range: %d", KeyHTTPPort, c.HTTPPort)
	}

	switch c.ExitStatusSource {
	case ejector.StatusSourceConsensus, ejector.StatusSourceExecution, ejector.StatusSourceBoth:
	default:
		return errors.Errorf("%s must be one of consensus, execution, both: %s", KeyExitStatusSource, c.ExitStatusSource)
	}

	switch c.LoggerFormat {
	case LogFormatSimple, LogFormatJSON:
	default:
		return errors.Errorf("%s must be simple or json: %s", KeyLoggerFormat, c.LoggerFormat)
	}

	return nil
}

// secret returns KEY, falling back to the contents of the file named by
// KEY_FILE.
func secret(v *viper.Viper, key string) (string, error) {
	if value := v.GetString(key); value != "" {
		return value, nil
	}

	path := v.GetString(key + fileSuffix)
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to load %s%s", key, fileSuffix)
	}

	return strings.TrimSpace(string(data)), nil
}

func addressList(raw string) ([]common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	values, err := stringList(raw)
	if err != nil {
		return nil, err
	}

	addresses := make([]common.Address, 0, len(values))

	for _, value := range values {
		if !common.IsHexAddress(value) {
			return nil, errors.Errorf("not an address: %s", value)
		}

		addresses = append(addresses, common.HexToAddress(value))
	}

	return addresses, nil
}

// loggerSecrets resolves LOGGER_SECRETS. Each entry names an environment
// variable whose value (or _FILE contents) must be redacted; entries that
// name nothing are taken literally.
func loggerSecrets(v *viper.Viper) ([]string, error) {
	raw := strings.TrimSpace(v.GetString(KeyLoggerSecrets))
	if raw == "" {
		return nil, nil
	}

	names, err := stringList(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid %s", KeyLoggerSecrets)
	}

	resolved := make([]string, 0, len(names))

	for _, name := range names {
		value, err := secret(v, name)
		if err != nil {
			return nil, err
		}

		if value == "" {
			value = name
		}

		resolved = append(resolved, value)
	}

	return resolved, nil
}

// stringList accepts a JSON array or a comma separated list.
func stringList(raw string) ([]string, error) {
	if strings.HasPrefix(raw, "[") {
		var values []string
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return nil, errors.Wrap(err, "invalid JSON array")
		}

		return values, nil
	}

	values := make([]string, 0)

	for _, value := range strings.Split(raw, ",") {
		if value = strings.TrimSpace(value); value != "" {
			values = append(values, value)
		}
	}

	return values, nil
}
