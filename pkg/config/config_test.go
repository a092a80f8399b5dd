package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/validator-ejector/pkg/ejector"
)

const testLocator = "0x1111111111111111111111111111111111111111"

func setBaseEnv(t *testing.T) {
	t.Helper()

	t.Setenv(KeyExecutionNode, "http://el:8545/")
	t.Setenv(KeyConsensusNode, "http://cl:5052")
	t.Setenv(KeyLocatorAddress, testLocator)
}

func setWebhookEnv(t *testing.T) {
	t.Helper()

	t.Setenv(KeyWebhookNode, "https://webhook.example")
	t.Setenv(KeyWebhookAuth, "/auth")
	t.Setenv(KeyWebhookSend, "/send")
	t.Setenv(KeyWebhookPrivateKey, "0xabc")
	t.Setenv(KeyWebhookAppName, "ejector")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)
	t.Setenv(KeyMessagesLocation, "/messages")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "http://el:8545", cfg.ExecutionNode)
	assert.Equal(t, common.HexToAddress(testLocator), cfg.LocatorAddress)
	assert.Equal(t, uint64(50000), cfg.BlocksPreload)
	assert.Equal(t, uint64(900), cfg.BlocksLoop)
	assert.Equal(t, 384*time.Second, cfg.JobInterval)
	assert.Equal(t, 8989, cfg.HTTPPort)
	assert.False(t, cfg.RunMetrics)
	assert.True(t, cfg.RunHealthCheck)
	assert.False(t, cfg.DryRun)
	assert.False(t, cfg.IgnoreFirstCert)
	assert.Equal(t, ejector.StatusSourceConsensus, cfg.ExitStatusSource)
	assert.Equal(t, "info", cfg.LoggerLevel)
	assert.Equal(t, LogFormatSimple, cfg.LoggerFormat)
	assert.Empty(t, cfg.OracleAllowlist)
	assert.Equal(t, ejector.ModeMessage, cfg.Mode())
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv(KeyMessagesLocation, "/messages")
	t.Setenv(KeyBlocksPreload, "100")
	t.Setenv(KeyBlocksLoop, "10")
	t.Setenv(KeyJobInterval, "12000")
	t.Setenv(KeyHTTPPort, "9090")
	t.Setenv(KeyRunMetrics, "true")
	t.Setenv(KeyDryRun, "true")
	t.Setenv(KeyExitStatusSource, "Both")
	t.Setenv(KeyLoggerFormat, "json")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, uint64(100), cfg.BlocksPreload)
	assert.Equal(t, uint64(10), cfg.BlocksLoop)
	assert.Equal(t, 12*time.Second, cfg.JobInterval)
	assert.Equal(t, 9090, cfg.HTTPPort)
	assert.True(t, cfg.RunMetrics)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, ejector.StatusSourceBoth, cfg.ExitStatusSource)
	assert.Equal(t, LogFormatJSON, cfg.LoggerFormat)
}

func TestMode(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected string
	}{
		{
			name:     "messages directory wins",
			env:      map[string]string{KeyMessagesLocation: "/messages", KeyWebhookSend: "/send"},
			expected: ejector.ModeMessage,
		},
		{
			name:     "webhook send",
			env:      map[string]string{},
			expected: ejector.ModeWebhookSend,
		},
		{
			name:     "webhook fetch",
			env:      map[string]string{KeyWebhookSend: "", KeyWebhookGet: "/get", KeyWebhookDecrypt: "secret"},
			expected: ejector.ModeWebhookFetch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			setWebhookEnv(t)

			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			cfg, err := Load(NewViper())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Mode())
		})
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		contains string
	}{
		{
			name:     "missing nodes",
			env:      map[string]string{KeyExecutionNode: "", KeyConsensusNode: ""},
			contains: "CONSENSUS_NODE, EXECUTION_NODE",
		},
		{
			name:     "invalid locator",
			env:      map[string]string{KeyLocatorAddress: "0x123"},
			contains: KeyLocatorAddress,
		},
		{
			name:     "missing locator",
			env:      map[string]string{KeyLocatorAddress: ""},
			contains: KeyLocatorAddress,
		},
		{
			name:     "webhook without messages",
			env:      map[string]string{KeyMessagesLocation: ""},
			contains: KeyWebhookNode,
		},
		{
			name:     "fetch without decrypt secret",
			env:      map[string]string{KeyMessagesLocation: "", KeyWebhookNode: "https://w", KeyWebhookAuth: "/a", KeyWebhookPrivateKey: "0x1", KeyWebhookAppName: "a", KeyWebhookGet: "/get"},
			contains: KeyWebhookDecrypt,
		},
		{
			name:     "bad status source",
			env:      map[string]string{KeyExitStatusSource: "oracle"},
			contains: KeyExitStatusSource,
		},
		{
			name:     "bad log format",
			env:      map[string]string{KeyLoggerFormat: "xml"},
			contains: KeyLoggerFormat,
		},
		{
			name:     "zero interval",
			env:      map[string]string{KeyJobInterval: "0"},
			contains: KeyJobInterval,
		},
		{
			name:     "bad allowlist",
			env:      map[string]string{KeyOracleAllowlist: "0x1,nope"},
			contains: KeyOracleAllowlist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(KeyMessagesLocation, "/messages")

			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := Load(NewViper())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestSecretFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "password")
	require.NoError(t, os.WriteFile(path, []byte("hunter2\n"), 0o600))

	setBaseEnv(t)
	t.Setenv(KeyMessagesLocation, "/messages")
	t.Setenv(KeyMessagesPassword+"_FILE", path)

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.MessagesPassword)

	t.Run("inline value wins", func(t *testing.T) {
		t.Setenv(KeyMessagesPassword, "inline")

		cfg, err := Load(NewViper())
		require.NoError(t, err)
		assert.Equal(t, "inline", cfg.MessagesPassword)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv(KeyMessagesPassword+"_FILE", filepath.Join(dir, "missing"))

		_, err := Load(NewViper())
		assert.Error(t, err)
	})
}

func TestAllowlist(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		disable  string
		expected []common.Address
	}{
		{name: "empty", raw: "", expected: nil},
		{name: "comma separated", raw: "0x1111111111111111111111111111111111111111, 0x2222222222222222222222222222222222222222", expected: []common.Address{common.HexToAddress("0x1111111111111111111111111111111111111111"), common.HexToAddress("0x2222222222222222222222222222222222222222")}},
		{name: "json array", raw: `["0x2222222222222222222222222222222222222222"]`, expected: []common.Address{common.HexToAddress("0x2222222222222222222222222222222222222222")}},
		{name: "disabled", raw: "0x1111111111111111111111111111111111111111", disable: "true", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			t.Setenv(KeyMessagesLocation, "/messages")
			t.Setenv(KeyOracleAllowlist, tt.raw)
			t.Setenv(KeyDisableSecurity, tt.disable)

			cfg, err := Load(NewViper())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Allowlist())
		})
	}
}

func TestLoggerSecrets(t *testing.T) {
	setBaseEnv(t)
	t.Setenv(KeyMessagesLocation, "/messages")
	t.Setenv(KeyMessagesPassword, "hunter2")
	t.Setenv(KeyLoggerSecrets, `["MESSAGES_PASSWORD","literal"]`)

	cfg, err := Load(NewViper())
	require.NoError(t, err)
	assert.Equal(t, []string{"hunter2", "literal"}, cfg.LoggerSecrets)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("BLOCKS_LOOP=77\nEXECUTION_NODE=http://from-file\n"), 0o600))

	setBaseEnv(t)
	t.Setenv(KeyMessagesLocation, "/messages")
	t.Setenv(KeyBlocksLoop, "")
	require.NoError(t, os.Unsetenv(KeyBlocksLoop))

	require.NoError(t, LoadEnvFile(path))
	t.Cleanup(func() { os.Unsetenv(KeyBlocksLoop) })

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, uint64(77), cfg.BlocksLoop)
	// already set variables are not overridden
	assert.Equal(t, "http://el:8545", cfg.ExecutionNode)

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
	assert.NoError(t, LoadEnvFile(""))
}
