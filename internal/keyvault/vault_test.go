package keyvault

import (
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVault_RoundTrip(t *testing.T) {
	v, err := New("server-secret", "", 1000)
	require.NoError(t, err)

	sealed, err := v.Encrypt("AIza-test-key")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "AIza")

	opened, err := v.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, "AIza-test-key", opened)
}

func TestVault_WrongSecret(t *testing.T) {
	a, _ := New("secret-a", "", 1000)
	b, _ := New("secret-b", "", 1000)

	sealed, err := a.Encrypt("value")
	require.NoError(t, err)

	_, err = b.Decrypt(sealed)
	assert.Error(t, err)
}

func TestVault_InvalidBundle(t *testing.T) {
	v, _ := New("secret", "", 1000)

	_, err := v.Decrypt("not base64!")
	assert.True(t, errors.Is(err, ErrInvalidBundle))

	_, err = v.Decrypt(base64.StdEncoding.EncodeToString([]byte(`{"iv":"zz","data":"00"}`)))
	assert.True(t, errors.Is(err, ErrInvalidBundle))

	_, err = v.Decrypt(base64.StdEncoding.EncodeToString([]byte(`{"iv":"0011","data":"00"}`)))
	assert.True(t, errors.Is(err, ErrInvalidBundle))
}

func TestNew_EmptySecret(t *testing.T) {
	_, err := New("", "", 0)
	assert.Error(t, err)
}
