package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("65f0c0ffee0000000000abcd", 3)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	claims, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "65f0c0ffee0000000000abcd", claims.NodeID)
	require.Equal(t, 3, claims.Version)
	require.WithinDuration(t, expiresAt, claims.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	now := time.Now()
	signer.now = func() time.Time { return now }
	token, _, err := signer.Generate("node", 1)
	require.NoError(t, err)

	signer.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = signer.Parse(token)
	require.EqualError(t, err, "token expired")
}

func TestSignedURLSignerTampered(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("node", 1)
	require.NoError(t, err)

	tampered := strings.Replace(token, "node.1.", "node.2.", 1)
	_, err = signer.Parse(tampered)
	require.EqualError(t, err, "invalid token signature")

	_, _, err = NewSignedURLSigner("", time.Hour).Generate("node", 1)
	require.Error(t, err)
}
