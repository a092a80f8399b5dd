package webhook

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/validator-ejector/pkg/execution"
	"github.com/ethpandaops/validator-ejector/pkg/keystore"
)

var (
	// ErrUnauthorized is returned when a call is still rejected after re-authenticating
	ErrUnauthorized = errors.New("webhook rejected credentials")

	// ErrDecryption is returned when a fetched exit message cannot be decrypted
	ErrDecryption = keystore.ErrDecryption
)

// Config holds the webhook endpoints and credentials
type Config struct {
	Node          string
	Auth          string
	Get           string
	Send          string
	AppName       string
	PrivateKey    string
	DecryptSecret string
}

// Client talks to the webhook node on behalf of the ejector.
type Client struct {
	cfg     Config
	key     *ecdsa.PrivateKey
	signer  common.Address
	http    *http.Client
	session *Session
	log     logrus.FieldLogger
}

type authRequest struct {
	Signer string `json:"signer"`
	Signed string `json:"signed"`
}

// NewClient creates a webhook client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, log logrus.FieldLogger) (*Client, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid webhook private key")
	}

	if httpClient == nil {
		httpClient = &http.Client{}
	}

	cfg.Node = strings.TrimSuffix(cfg.Node, "/")

	return &Client{
		cfg:     cfg,
		key:     key,
		signer:  crypto.PubkeyToAddress(key.PublicKey),
		http:    httpClient,
		session: &Session{},
		log:     log.WithField("component", "webhook"),
	}, nil
}

// Session returns the client's session
func (c *Client) Session() *Session {
	return c.session
}

// Close drops the session token.
func (c *Client) Close() {
	c.session.invalidate()
}

// signChallenge signs the application name as an EIP-191 personal message.
func (c *Client) signChallenge() (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(c.cfg.AppName)), c.key)
	if err != nil {
		return "", err
	}

	sig[crypto.RecoveryIDOffset] += 27

	return hexutil.Encode(sig), nil
}

func (c *Client) authenticate(ctx context.Context) error {
	signed, err := c.signChallenge()
	if err != nil {
		return errors.Wrap(err, "failed to sign auth challenge")
	}

	body, err := json.Marshal(&authRequest{
		Signer: c.signer.Hex(),
		Signed: signed,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal auth request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Node+c.cfg.Auth, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create auth request")
	}

	req.Header.Set("Content-Type", "application/json")

	status, respBody, err := c.do(req)
	if err != nil {
		return errors.Wrap(err, "auth request failed")
	}

	if status != http.StatusOK {
		return errors.Errorf("auth request failed: status %d - %s", status, respBody)
	}

	token := strings.TrimSpace(string(respBody))
	if token == "" {
		return errors.New("auth response did not contain a token")
	}

	c.session.authenticated(token)

	c.log.WithField("signer", c.signer.Hex()).Info("Authenticated to webhook node")

	return nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, errors.Wrap(err, "failed to read response body")
	}

	return resp.StatusCode, body, nil
}

// authorized runs a bearer-authenticated request, authenticating first when
// the session has no token. A 401 invalidates the session and the request is
// retried once after re-authenticating.
func (c *Client) authorized(ctx context.Context, newRequest func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	if c.session.State() == StateUnauthenticated {
		if err := c.authenticate(ctx); err != nil {
			return nil, err
		}
	}

	for attempt := 0; ; attempt++ {
		token, _ := c.session.Token()

		req, err := newRequest(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create request")
		}

		req.Header.Set("Authorization", "Bearer "+token)

		status, body, err := c.do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s failed", req.Method, req.URL.Path)
		}

		switch {
		case status == http.StatusUnauthorized && attempt == 0:
			c.log.Warn("Webhook session rejected, re-authenticating")

			c.session.invalidate()

			if err := c.authenticate(ctx); err != nil {
				return nil, err
			}

			continue
		case status == http.StatusUnauthorized:
			c.session.invalidate()

			return nil, errors.Wrapf(ErrUnauthorized, "%s %s", req.Method, req.URL.Path)
		case status < 200 || status > 299:
			return nil, errors.Errorf("%s %s failed: status %d - %s", req.Method, req.URL.Path, status, body)
		}

		return body, nil
	}
}

// SendEvent posts an exit request event to the webhook send endpoint.
func (c *Client) SendEvent(ctx context.Context, event *execution.ExitRequestEvent) error {
	body, err := json.Marshal(event.Payload())
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	_, err = c.authorized(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Node+c.cfg.Send, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}

		req.Header.Set("Content-Type", "application/json")

		return req, nil
	})
	if err != nil {
		return err
	}

	c.log.WithField("validator_index", event.ValidatorIndex).Info("Voluntary exit webhook called successfully")

	return nil
}

// GetExitMessage fetches the encrypted exit message for a validator and
// returns it decrypted.
func (c *Client) GetExitMessage(ctx context.Context, index uint64) (string, error) {
	url := c.cfg.Node + c.cfg.Get + "/" + strconv.FormatUint(index, 10)

	encrypted, err := c.authorized(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	})
	if err != nil {
		return "", err
	}

	c.log.WithField("validator_index", index).Debug("Fetched encrypted exit message")

	plaintext, err := keystore.Decrypt(encrypted, c.cfg.DecryptSecret)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}
