package cryptoutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateClientKey(t *testing.T) {
	privPEM, pubkey, err := GenerateClientKey()
	require.NoError(t, err)
	require.Contains(t, string(privPEM), "EC PRIVATE KEY")
	require.Contains(t, string(pubkey), "PUBLIC KEY")
	require.NoError(t, pubkey.Validate())
}

func TestPubkeyFromPrivateKey(t *testing.T) {
	privPEM, pubkey, err := GenerateClientKey()
	require.NoError(t, err)

	recovered, err := PubkeyFromPrivateKey(privPEM)
	require.NoError(t, err)
	require.Equal(t, pubkey, recovered)

	_, err = PubkeyFromPrivateKey([]byte("garbage"))
	require.Error(t, err)
}

func TestDeriveSealingKey(t *testing.T) {
	keyA := DeriveSealingKey([]byte("secret"))
	keyB := DeriveSealingKey([]byte("secret"))
	keyC := DeriveSealingKey([]byte("other"))

	require.Len(t, keyA, SealingKeySize)
	require.Equal(t, keyA, keyB)
	require.NotEqual(t, keyA, keyC)
}
