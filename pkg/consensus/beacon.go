package consensus

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrValidatorNotFound is returned when the beacon node does not know a validator
var ErrValidatorNotFound = errors.New("validator not found")

// BeaconAPI handles interactions with the beacon node
type BeaconAPI struct {
	baseURL string
	client  *http.Client
	log     logrus.FieldLogger
}

// NewBeaconAPI creates a new BeaconAPI instance. client may be nil.
func NewBeaconAPI(baseURL string, client *http.Client, log logrus.FieldLogger) *BeaconAPI {
	if client == nil {
		client = &http.Client{}
	}

	return &BeaconAPI{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		log:     log.WithField("component", "consensus"),
	}
}

func (b *BeaconAPI) endpoint(path string) (string, error) {
	requestURL, err := url.Parse(b.baseURL)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse base URL")
	}

	requestURL.Path += path

	return requestURL.String(), nil
}

// do performs a request and decodes a 200 response into out. A 404 is
// reported as ErrValidatorNotFound wrapped with the response body.
func (b *BeaconAPI) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	urlStr, err := b.endpoint(path)
	if err != nil {
		return err
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	b.log.WithFields(logrus.Fields{"method": method, "path": path}).Debug("Calling beacon node")

	resp, err := b.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to call %s", path)
	}

	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		respBody, _ := io.ReadAll(resp.Body)

		return errors.Wrapf(ErrValidatorNotFound, "%s: %s", path, string(respBody))
	}

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)

		return errors.Errorf("failed to call %s: %s - %s", path, resp.Status, string(respBody))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", path)
	}

	return nil
}

// Validator fetches a validator at head by pubkey or index.
func (b *BeaconAPI) Validator(ctx context.Context, id string) (*Validator, error) {
	var result struct {
		Data Validator `json:"data"`
	}

	if err := b.do(ctx, http.MethodGet, "/eth/v1/beacon/states/head/validators/"+id, nil, &result); err != nil {
		return nil, err
	}

	return &result.Data, nil
}

// ValidatorByIndex fetches a validator at head by index.
func (b *BeaconAPI) ValidatorByIndex(ctx context.Context, index uint64) (*Validator, error) {
	return b.Validator(ctx, strconv.FormatUint(index, 10))
}

// IsExiting reports whether the validator with pubkey is exiting or has exited.
func (b *BeaconAPI) IsExiting(ctx context.Context, pubkey string) (bool, error) {
	validator, err := b.Validator(ctx, pubkey)
	if err != nil {
		return false, err
	}

	b.log.WithFields(logrus.Fields{
		"pubkey": pubkey,
		"status": validator.Status,
	}).Debug("Fetched validator status")

	return IsExitingStatus(validator.Status), nil
}

// Genesis fetches the chain genesis details.
func (b *BeaconAPI) Genesis(ctx context.Context) (*Genesis, error) {
	var result struct {
		Data Genesis `json:"data"`
	}

	if err := b.do(ctx, http.MethodGet, "/eth/v1/beacon/genesis", nil, &result); err != nil {
		return nil, err
	}

	return &result.Data, nil
}

// Spec fetches the beacon chain configuration.
func (b *BeaconAPI) Spec(ctx context.Context) (*Spec, error) {
	var result struct {
		Data Spec `json:"data"`
	}

	if err := b.do(ctx, http.MethodGet, "/eth/v1/config/spec", nil, &result); err != nil {
		return nil, err
	}

	if result.Data.CapellaForkVersion == "" || result.Data.DomainVoluntaryExit == "" {
		return nil, errors.New("beacon spec is missing CAPELLA_FORK_VERSION or DOMAIN_VOLUNTARY_EXIT")
	}

	return &result.Data, nil
}

// Syncing reports whether the beacon node is syncing.
func (b *BeaconAPI) Syncing(ctx context.Context) (bool, error) {
	var result struct {
		Data struct {
			IsSyncing bool `json:"is_syncing"`
		} `json:"data"`
	}

	if err := b.do(ctx, http.MethodGet, "/eth/v1/node/syncing", nil, &result); err != nil {
		return false, err
	}

	return result.Data.IsSyncing, nil
}

// CheckSync logs a warning when the beacon node is syncing.
func (b *BeaconAPI) CheckSync(ctx context.Context) error {
	syncing, err := b.Syncing(ctx)
	if err != nil {
		return err
	}

	if syncing {
		b.log.Warn("Consensus node is still syncing! Proceed with caution.")
	}

	return nil
}

// SubmitExit broadcasts a signed voluntary exit to the beacon node pool.
func (b *BeaconAPI) SubmitExit(ctx context.Context, exit *SignedVoluntaryExit) error {
	body, err := json.Marshal(exit)
	if err != nil {
		return errors.Wrap(err, "failed to marshal voluntary exit")
	}

	if err := b.do(ctx, http.MethodPost, "/eth/v1/beacon/pool/voluntary_exits", body, nil); err != nil {
		return err
	}

	b.log.WithField("validator_index", exit.Message.ValidatorIndex).Info("Voluntary exit message sent")

	return nil
}
