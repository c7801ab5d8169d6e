package enrollment

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/embertalk/keyserver/cryptoutils"
	"github.com/embertalk/keyserver/interfaces"
)

// ChallengeNonceSize is the size of the random nonce a client must prove it
// can decrypt.
const ChallengeNonceSize = 32

// ErrChallengeFailed is returned by VerifyResponse when the sealed state
// cannot be opened or the response does not match the challenge nonce.
// Callers must not distinguish the two cases to avoid oracle behavior.
var ErrChallengeFailed = errors.New("failed challenge")

// Challenge is the server's reply to a challenge request.
type Challenge struct {
	// Challenge is the challenge nonce, ECIES-encrypted to the client's
	// public key.
	Challenge []byte `json:"challenge"`

	// State is the sealed server state the client must echo back.
	State []byte `json:"state"`

	// Nonce is the AES-GCM nonce the state was sealed with.
	Nonce []byte `json:"nonce"`
}

// Response is the client's answer to a Challenge, claiming a name.
type Response struct {
	// Response is the decrypted challenge nonce.
	Response []byte `json:"response"`

	// State and Nonce are echoed from the Challenge unchanged.
	State []byte `json:"state"`
	Nonce []byte `json:"nonce"`

	// Name is the name to register the sealed public key under.
	Name string `json:"name"`
}

// sealedState is what the Issuer hides inside Challenge.State.
type sealedState struct {
	ChallengeNonce []byte                  `json:"challenge_nonce"`
	Pubkey         interfaces.ClientPubkey `json:"pubkey"`
}

// Issuer mints challenges and verifies responses using a process-held
// sealing key.
type Issuer struct {
	aead cipher.AEAD
}

// NewIssuer creates an Issuer from a 32-byte sealing key, typically derived
// from an operator secret via cryptoutils.DeriveSealingKey.
func NewIssuer(sealingKey []byte) (*Issuer, error) {
	if len(sealingKey) != cryptoutils.SealingKeySize {
		return nil, fmt.Errorf("sealing key must be %d bytes", cryptoutils.SealingKeySize)
	}

	block, err := aes.NewCipher(sealingKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Issuer{aead: aead}, nil
}

// NewRandomIssuer creates an Issuer with a fresh random sealing key. The key
// never leaves the process; challenges issued by it do not survive restarts.
func NewRandomIssuer() (*Issuer, error) {
	key := make([]byte, cryptoutils.SealingKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate sealing key: %w", err)
	}
	return NewIssuer(key)
}

// NewChallenge creates a challenge for the given client public key. The
// returned Challenge carries the encrypted nonce and the sealed state; the
// Issuer retains nothing.
func (i *Issuer) NewChallenge(pubkey interfaces.ClientPubkey) (Challenge, error) {
	if err := pubkey.Validate(); err != nil {
		return Challenge{}, fmt.Errorf("invalid client public key: %w", err)
	}

	challengeNonce := make([]byte, ChallengeNonceSize)
	if _, err := io.ReadFull(rand.Reader, challengeNonce); err != nil {
		return Challenge{}, fmt.Errorf("failed to generate challenge nonce: %w", err)
	}

	encrypted, err := cryptoutils.EncryptToClient(pubkey, challengeNonce)
	if err != nil {
		return Challenge{}, fmt.Errorf("failed to encrypt challenge: %w", err)
	}

	state, err := json.Marshal(sealedState{
		ChallengeNonce: challengeNonce,
		Pubkey:         pubkey,
	})
	if err != nil {
		return Challenge{}, fmt.Errorf("failed to encode state: %w", err)
	}

	sealNonce := make([]byte, i.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, sealNonce); err != nil {
		return Challenge{}, fmt.Errorf("failed to generate seal nonce: %w", err)
	}

	return Challenge{
		Challenge: encrypted,
		State:     i.aead.Seal(nil, sealNonce, state, nil),
		Nonce:     sealNonce,
	}, nil
}

// VerifyResponse opens the sealed state and checks the client's response
// against the challenge nonce. On success it returns the public key the
// challenge was issued for; otherwise ErrChallengeFailed.
func (i *Issuer) VerifyResponse(resp Response) (interfaces.ClientPubkey, error) {
	if len(resp.Nonce) != i.aead.NonceSize() {
		return nil, ErrChallengeFailed
	}

	plaintext, err := i.aead.Open(nil, resp.Nonce, resp.State, nil)
	if err != nil {
		return nil, ErrChallengeFailed
	}

	var state sealedState
	if err := json.Unmarshal(plaintext, &state); err != nil {
		return nil, ErrChallengeFailed
	}

	if subtle.ConstantTimeCompare(resp.Response, state.ChallengeNonce) != 1 {
		return nil, ErrChallengeFailed
	}

	return state.Pubkey, nil
}

// Solve decrypts a challenge with the client's private key and prepares the
// response claiming the given name. It is the client-side half of the
// protocol.
func Solve(privateKeyPEM []byte, name string, challenge Challenge) (Response, error) {
	decrypted, err := cryptoutils.DecryptWithPrivateKey(privateKeyPEM, challenge.Challenge)
	if err != nil {
		return Response{}, fmt.Errorf("failed to decrypt challenge: %w", err)
	}

	return Response{
		Response: decrypted,
		State:    challenge.State,
		Nonce:    challenge.Nonce,
		Name:     name,
	}, nil
}
