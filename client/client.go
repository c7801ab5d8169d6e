// Package client implements a Go client for the EmberTalk key server API,
// including the full enrollment flow of requesting a challenge, solving it
// with a local private key, and claiming a name.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/embertalk/keyserver/cryptoutils"
	"github.com/embertalk/keyserver/enrollment"
	"github.com/embertalk/keyserver/interfaces"
)

// Client talks to a key server instance.
type Client struct {
	// BaseURL is the server address, e.g. http://127.0.0.1:3030.
	BaseURL string

	// HTTP is the underlying HTTP client. Defaults to http.DefaultClient.
	HTTP *http.Client
}

// New creates a client for the key server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    http.DefaultClient,
	}
}

// RequestChallenge asks the server for an enrollment challenge for pubkey.
func (c *Client) RequestChallenge(pubkey interfaces.ClientPubkey) (enrollment.Challenge, error) {
	body, err := json.Marshal(struct {
		Pubkey interfaces.ClientPubkey `json:"pubkey"`
	}{Pubkey: pubkey})
	if err != nil {
		return enrollment.Challenge{}, fmt.Errorf("could not encode request: %w", err)
	}

	resp, err := c.httpClient().Post(c.BaseURL+"/challenge", "application/json", bytes.NewReader(body))
	if err != nil {
		return enrollment.Challenge{}, fmt.Errorf("could not request challenge: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return enrollment.Challenge{}, fmt.Errorf("could not read challenge response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return enrollment.Challenge{}, fmt.Errorf("key server returned %d: %s", resp.StatusCode, string(raw))
	}

	var challenge enrollment.Challenge
	if err := json.Unmarshal(raw, &challenge); err != nil {
		return enrollment.Challenge{}, fmt.Errorf("could not parse challenge: %w", err)
	}

	return challenge, nil
}

// SubmitResponse posts a solved challenge. Conflicting names map to
// interfaces.ErrNameTaken and unverifiable responses to
// enrollment.ErrChallengeFailed.
func (c *Client) SubmitResponse(answer enrollment.Response) error {
	body, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("could not encode response: %w", err)
	}

	resp, err := c.httpClient().Post(c.BaseURL+"/response", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("could not submit response: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return nil
	case http.StatusConflict:
		return interfaces.ErrNameTaken
	case http.StatusBadRequest:
		return enrollment.ErrChallengeFailed
	default:
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("key server returned %d: %s", resp.StatusCode, string(raw))
	}
}

// LookupKey fetches the public key registered under name, or
// interfaces.ErrNotFound.
func (c *Client) LookupKey(name string) (interfaces.ClientPubkey, error) {
	resp, err := c.httpClient().Get(c.BaseURL + "/key/" + name)
	if err != nil {
		return nil, fmt.Errorf("could not look up key: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read lookup response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, interfaces.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("key server returned %d: %s", resp.StatusCode, string(raw))
	}

	var lookup struct {
		Pubkey interfaces.ClientPubkey `json:"pubkey"`
	}
	if err := json.Unmarshal(raw, &lookup); err != nil {
		return nil, fmt.Errorf("could not parse lookup response: %w", err)
	}
	if len(lookup.Pubkey) == 0 {
		return nil, errors.New("lookup response carries no pubkey")
	}

	return lookup.Pubkey, nil
}

// Enroll runs the complete enrollment flow for a private key: derive the
// public key, request a challenge, solve it, and claim name.
func (c *Client) Enroll(name string, privateKeyPEM []byte) error {
	pubkey, err := cryptoutils.PubkeyFromPrivateKey(privateKeyPEM)
	if err != nil {
		return fmt.Errorf("could not derive pubkey: %w", err)
	}

	challenge, err := c.RequestChallenge(pubkey)
	if err != nil {
		return err
	}

	answer, err := enrollment.Solve(privateKeyPEM, name, challenge)
	if err != nil {
		return err
	}

	return c.SubmitResponse(answer)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}
