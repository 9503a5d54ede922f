package utils

import (
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTOTPGenerateAndVerify(t *testing.T) {
	svc := NewTOTPService("")

	secret, uri, err := svc.GenerateSecret("nadia@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Contains(t, uri, "ClearPort")

	token, err := totp.GenerateCode(secret, time.Now().UTC())
	require.NoError(t, err)

	assert.True(t, svc.Verify(secret, token, 1))
	assert.False(t, svc.Verify(secret, "000000", 1))
}

func TestTOTPVerifyToleratesSkew(t *testing.T) {
	svc := NewTOTPService("ClearPort")

	secret, _, err := svc.GenerateSecret("nadia@example.com")
	require.NoError(t, err)

	token, err := totp.GenerateCode(secret, time.Now().UTC().Add(-30*time.Second))
	require.NoError(t, err)

	assert.True(t, svc.Verify(secret, token, 1))
}

func TestProvisioningURI(t *testing.T) {
	svc := NewTOTPService("ClearPort")

	uri := svc.ProvisioningURI("nadia@example.com", "ABC123SECRET")
	assert.Contains(t, uri, "otpauth://totp/")
	assert.Contains(t, uri, "secret=ABC123SECRET")
	assert.Contains(t, uri, "issuer=ClearPort")
}
