package crypt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)

	plaintext := []byte("a chunk of video data")

	ciphertext, nonce, err := EncryptChunk(plaintext, key)
	require.NoError(t, err)
	require.Len(t, nonce, NonceSize)
	assert.NotEqual(t, plaintext, ciphertext)

	got, err := DecryptChunk(ciphertext, key, nonce)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptChunk_EmptyPlaintext(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)

	ciphertext, nonce, err := EncryptChunk(nil, key)
	require.NoError(t, err)

	got, err := DecryptChunk(ciphertext, key, nonce)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEncryptChunk_FreshNoncePerCall(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)

	plaintext := []byte("same plaintext twice")

	ct1, nonce1, err := EncryptChunk(plaintext, key)
	require.NoError(t, err)
	ct2, nonce2, err := EncryptChunk(plaintext, key)
	require.NoError(t, err)

	assert.False(t, bytes.Equal(nonce1, nonce2), "two encryptions must not share a nonce")
	assert.False(t, bytes.Equal(ct1, ct2), "two encryptions must not share a ciphertext")
}

func TestDecryptChunk_TamperedCiphertext(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)

	ciphertext, nonce, err := EncryptChunk([]byte("tamper target"), key)
	require.NoError(t, err)

	ciphertext[0] ^= 0x01

	_, err = DecryptChunk(ciphertext, key, nonce)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestDecryptChunk_TamperedNonce(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)

	ciphertext, nonce, err := EncryptChunk([]byte("tamper target"), key)
	require.NoError(t, err)

	nonce[NonceSize-1] ^= 0x01

	_, err = DecryptChunk(ciphertext, key, nonce)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestDecryptChunk_TruncatedCiphertext(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)

	ciphertext, nonce, err := EncryptChunk([]byte("tamper target"), key)
	require.NoError(t, err)

	_, err = DecryptChunk(ciphertext[:len(ciphertext)-1], key, nonce)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestDecryptChunk_WrongKey(t *testing.T) {
	key, err := NewKey()
	require.NoError(t, err)
	other, err := NewKey()
	require.NoError(t, err)

	ciphertext, nonce, err := EncryptChunk([]byte("secret"), key)
	require.NoError(t, err)

	_, err = DecryptChunk(ciphertext, other, nonce)
	assert.ErrorIs(t, err, ErrAuthentication)
}

func TestBadKeySize(t *testing.T) {
	_, _, err := EncryptChunk([]byte("x"), []byte("short"))
	assert.Error(t, err)

	_, err = DecryptChunk([]byte("x"), []byte("short"), make([]byte, NonceSize))
	assert.Error(t, err)
}
