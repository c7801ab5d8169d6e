package enrollment

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embertalk/keyserver/cryptoutils"
)

func TestChallengeRoundTrip(t *testing.T) {
	issuer, err := NewRandomIssuer()
	require.NoError(t, err)

	privPEM, pubkey, err := cryptoutils.GenerateClientKey()
	require.NoError(t, err)

	challenge, err := issuer.NewChallenge(pubkey)
	require.NoError(t, err)
	require.NotEmpty(t, challenge.Challenge)
	require.NotEmpty(t, challenge.State)
	require.NotEmpty(t, challenge.Nonce)

	resp, err := Solve(privPEM, "alice", challenge)
	require.NoError(t, err)
	require.Len(t, resp.Response, ChallengeNonceSize)

	verified, err := issuer.VerifyResponse(resp)
	require.NoError(t, err)
	require.Equal(t, pubkey, verified)
}

func TestVerifyRejectsWrongResponse(t *testing.T) {
	issuer, err := NewRandomIssuer()
	require.NoError(t, err)

	_, pubkey, err := cryptoutils.GenerateClientKey()
	require.NoError(t, err)

	challenge, err := issuer.NewChallenge(pubkey)
	require.NoError(t, err)

	resp := Response{
		Response: make([]byte, ChallengeNonceSize),
		State:    challenge.State,
		Nonce:    challenge.Nonce,
		Name:     "alice",
	}

	_, err = issuer.VerifyResponse(resp)
	require.ErrorIs(t, err, ErrChallengeFailed)
}

func TestVerifyRejectsTamperedState(t *testing.T) {
	issuer, err := NewRandomIssuer()
	require.NoError(t, err)

	privPEM, pubkey, err := cryptoutils.GenerateClientKey()
	require.NoError(t, err)

	challenge, err := issuer.NewChallenge(pubkey)
	require.NoError(t, err)

	resp, err := Solve(privPEM, "alice", challenge)
	require.NoError(t, err)

	resp.State[0] ^= 0xff

	_, err = issuer.VerifyResponse(resp)
	require.ErrorIs(t, err, ErrChallengeFailed)
}

func TestVerifyRejectsForeignState(t *testing.T) {
	// A state sealed by one issuer must not be accepted by another. This is
	// what invalidates outstanding challenges across restarts.
	issuerA, err := NewRandomIssuer()
	require.NoError(t, err)
	issuerB, err := NewRandomIssuer()
	require.NoError(t, err)

	privPEM, pubkey, err := cryptoutils.GenerateClientKey()
	require.NoError(t, err)

	challenge, err := issuerA.NewChallenge(pubkey)
	require.NoError(t, err)

	resp, err := Solve(privPEM, "alice", challenge)
	require.NoError(t, err)

	_, err = issuerB.VerifyResponse(resp)
	require.ErrorIs(t, err, ErrChallengeFailed)
}

func TestDerivedIssuersShareState(t *testing.T) {
	// Two issuers derived from the same operator secret accept each other's
	// challenges, which is what keeps challenges valid across restarts.
	key := cryptoutils.DeriveSealingKey([]byte("operator secret"))

	issuerA, err := NewIssuer(key)
	require.NoError(t, err)
	issuerB, err := NewIssuer(key)
	require.NoError(t, err)

	privPEM, pubkey, err := cryptoutils.GenerateClientKey()
	require.NoError(t, err)

	challenge, err := issuerA.NewChallenge(pubkey)
	require.NoError(t, err)

	resp, err := Solve(privPEM, "alice", challenge)
	require.NoError(t, err)

	verified, err := issuerB.VerifyResponse(resp)
	require.NoError(t, err)
	require.Equal(t, pubkey, verified)
}

func TestNewChallengeRejectsInvalidPubkey(t *testing.T) {
	issuer, err := NewRandomIssuer()
	require.NoError(t, err)

	_, err = issuer.NewChallenge([]byte("not a valid PEM"))
	require.Error(t, err)
}

func TestNewIssuerRejectsShortKey(t *testing.T) {
	_, err := NewIssuer([]byte("short"))
	require.Error(t, err)
}
