// utils/totp.go
package utils

import (
	"fmt"
	"net/url"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPService implements the identity service's TOTPVerifier with
// standard 30-second, 6-digit SHA1 TOTP, the profile authenticator apps
// expect.
type TOTPService struct {
	Issuer string
}

func NewTOTPService(issuer string) *TOTPService {
	if issuer == "" {
		issuer = "ClearPort"
	}
	return &TOTPService{Issuer: issuer}
}

// GenerateSecret creates a new shared secret and the otpauth://
// provisioning URI for authenticator apps.
func (t *TOTPService) GenerateSecret(accountLabel string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      t.Issuer,
		AccountName: accountLabel,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// ProvisioningURI rebuilds the otpauth:// URI for an already issued
// secret, matching the format authenticator apps expect.
func (t *TOTPService) ProvisioningURI(accountLabel, secret string) string {
	label := url.PathEscape(t.Issuer + ":" + accountLabel)
	return fmt.Sprintf("otpauth://totp/%s?secret=%s&issuer=%s",
		label, secret, url.QueryEscape(t.Issuer))
}

// Verify validates a token against the secret, tolerating the given
// number of 30-second time steps of clock skew.
func (t *TOTPService) Verify(secret, token string, skewSteps uint) bool {
	ok, err := totp.ValidateCustom(token, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      skewSteps,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}
