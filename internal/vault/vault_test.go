package vault

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatewaybot/internal/apperr"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := New("master-key", "iv-key")

	cases := []string{
		"",
		"simple-session-string",
		"a much longer session string with unicode 日本語 and symbols !@#$%^&*()",
	}

	for _, plain := range cases {
		ct, err := v.Encrypt(plain)
		require.NoError(t, err)

		got, err := v.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	v := New("master-key", "iv-key")

	ct, err := v.Encrypt("super-secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = v.Decrypt(tampered)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InvalidCiphertext))
}

func TestDecryptRejectsGarbage(t *testing.T) {
	v := New("master-key", "iv-key")

	_, err := v.Decrypt("not-valid-base64!!!")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.InvalidCiphertext))
}

func TestDifferentKeysProduceDifferentCiphertexts(t *testing.T) {
	a := New("master-a", "iv-a")
	b := New("master-b", "iv-b")

	ct, err := a.Encrypt("hello")
	require.NoError(t, err)

	_, err = b.Decrypt(ct)
	require.Error(t, err)
}
