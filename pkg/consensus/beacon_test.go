package consensus

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPubkey = "0x8f2a0fc9d8c1b2bbf0f4ee1d2b0f0e4f6b3d8a9e2c7b1d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c"

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}

func TestNewBeaconAPI(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		expected string
	}{
		{
			name:     "with trailing slash",
			baseURL:  "http://localhost:5052/",
			expected: "http://localhost:5052",
		},
		{
			name:     "without trailing slash",
			baseURL:  "http://localhost:5052",
			expected: "http://localhost:5052",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := NewBeaconAPI(tt.baseURL, nil, quietLogger())
			assert.Equal(t, tt.expected, api.baseURL)
		})
	}
}

func TestIsExiting(t *testing.T) {
	tests := []struct {
		name           string
		responseStatus int
		responseBody   string
		expected       bool
		expectError    bool
	}{
		{
			name:           "active ongoing",
			responseStatus: http.StatusOK,
			responseBody:   `{"data":{"index":"1","status":"active_ongoing"}}`,
			expected:       false,
		},
		{
			name:           "active exiting",
			responseStatus: http.StatusOK,
			responseBody:   `{"data":{"index":"1","status":"active_exiting"}}`,
			expected:       true,
		},
		{
			name:           "exited",
			responseStatus: http.StatusOK,
			responseBody:   `{"data":{"index":"1","status":"exited_unslashed"}}`,
			expected:       true,
		},
		{
			name:           "withdrawal possible",
			responseStatus: http.StatusOK,
			responseBody:   `{"data":{"index":"1","status":"withdrawal_possible"}}`,
			expected:       true,
		},
		{
			name:           "slashed",
			responseStatus: http.StatusOK,
			responseBody:   `{"data":{"index":"1","status":"active_slashed"}}`,
			expected:       true,
		},
		{
			name:           "server error",
			responseStatus: http.StatusInternalServerError,
			responseBody:   `{"message":"internal server error"}`,
			expectError:    true,
		},
		{
			name:           "invalid json",
			responseStatus: http.StatusOK,
			responseBody:   `{"data":`,
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/eth/v1/beacon/states/head/validators/"+testPubkey, r.URL.Path)
				w.WriteHeader(tt.responseStatus)
				_, err := w.Write([]byte(tt.responseBody))
				require.NoError(t, err)
			}))
			defer server.Close()

			api := NewBeaconAPI(server.URL, server.Client(), quietLogger())
			exiting, err := api.IsExiting(context.Background(), testPubkey)

			if tt.expectError {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, exiting)
		})
	}
}

func TestValidatorByIndexNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eth/v1/beacon/states/head/validators/42", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":404,"message":"Validator not found"}`))
	}))
	defer server.Close()

	api := NewBeaconAPI(server.URL, nil, quietLogger())
	_, err := api.ValidatorByIndex(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidatorNotFound))
}

func TestGenesis(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eth/v1/beacon/genesis", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"genesis_time":"1606824023","genesis_validators_root":"0x4b36","genesis_fork_version":"0x00000000"}}`))
	}))
	defer server.Close()

	genesis, err := NewBeaconAPI(server.URL, nil, quietLogger()).Genesis(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0x4b36", genesis.GenesisValidatorsRoot)
	assert.Equal(t, "0x00000000", genesis.GenesisForkVersion)
}

func TestSyncing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eth/v1/node/syncing", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"head_slot":"1","sync_distance":"10","is_syncing":true}}`))
	}))
	defer server.Close()

	api := NewBeaconAPI(server.URL, nil, quietLogger())

	syncing, err := api.Syncing(context.Background())
	require.NoError(t, err)
	assert.True(t, syncing)
	require.NoError(t, api.CheckSync(context.Background()))
}

func TestSubmitExit(t *testing.T) {
	var received SignedVoluntaryExit

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/eth/v1/beacon/pool/voluntary_exits", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &received))

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	exit := &SignedVoluntaryExit{Signature: "0xabcd"}
	exit.Message.Epoch = "194048"
	exit.Message.ValidatorIndex = "12"

	require.NoError(t, NewBeaconAPI(server.URL, nil, quietLogger()).SubmitExit(context.Background(), exit))
	assert.Equal(t, *exit, received)
}

func TestSubmitExitRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":400,"message":"Invalid voluntary exit"}`))
	}))
	defer server.Close()

	err := NewBeaconAPI(server.URL, nil, quietLogger()).SubmitExit(context.Background(), &SignedVoluntaryExit{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid voluntary exit")
}

func TestSpec(t *testing.T) {
	tests := []struct {
		name         string
		responseBody string
		expected     *Spec
		expectError  bool
	}{
		{
			name:         "successful response",
			responseBody: `{"data":{"CAPELLA_FORK_VERSION":"0x03000000","DOMAIN_VOLUNTARY_EXIT":"0x04000000","SLOTS_PER_EPOCH":"32"}}`,
			expected:     &Spec{CapellaForkVersion: "0x03000000", DomainVoluntaryExit: "0x04000000"},
		},
		{
			name:         "missing fields",
			responseBody: `{"data":{"SLOTS_PER_EPOCH":"32"}}`,
			expectError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/eth/v1/config/spec", r.URL.Path)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			spec, err := NewBeaconAPI(server.URL, nil, quietLogger()).Spec(context.Background())

			if tt.expectError {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, spec)
		})
	}
}
