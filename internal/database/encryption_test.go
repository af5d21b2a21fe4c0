package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptor_Disabled(t *testing.T) {
	e, err := newEncryptor("")
	require.NoError(t, err)
	assert.False(t, e.enabled())

	out, err := e.Encrypt("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	out, err = e.Decrypt("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestEncryptor_RoundTrip(t *testing.T) {
	e, err := newEncryptor(testSecret)
	require.NoError(t, err)

	for _, plaintext := range []string{"a", "push-token", "ünïcödé draft ✓"} {
		sealed, err := e.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, sealed)

		opened, err := e.Decrypt(sealed)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	}

	empty, err := e.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestEncryptor_RandomVersusLookup(t *testing.T) {
	e, err := newEncryptor(testSecret)
	require.NoError(t, err)

	a, _ := e.Encrypt("chat-1")
	b, _ := e.Encrypt("chat-1")
	assert.NotEqual(t, a, b)

	l1, _ := e.EncryptForLookup("chat-1")
	l2, _ := e.EncryptForLookup("chat-1")
	l3, _ := e.EncryptForLookup("chat-2")
	assert.Equal(t, l1, l2)
	assert.NotEqual(t, l1, l3)

	opened, err := e.Decrypt(l1)
	require.NoError(t, err)
	assert.Equal(t, "chat-1", opened)
}

func TestEncryptor_DecryptErrors(t *testing.T) {
	e, err := newEncryptor(testSecret)
	require.NoError(t, err)

	_, err = e.Decrypt("not base64!!")
	assert.Error(t, err)

	_, err = e.Decrypt("c2hvcnQ=")
	assert.Error(t, err)

	other, err := newEncryptor("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)
	sealed, _ := other.Encrypt("secret")
	_, err = e.Decrypt(sealed)
	assert.Error(t, err)
}

func TestEncryptor_RejectsShortSecret(t *testing.T) {
	_, err := newEncryptor("too-short")
	assert.Error(t, err)
}
