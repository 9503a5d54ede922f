// utils/password.go
package utils

import "golang.org/x/crypto/bcrypt"

// BcryptHasher implements the identity service's PasswordHasher on
// bcrypt with the default cost.
type BcryptHasher struct{}

func (BcryptHasher) Hash(raw string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (BcryptHasher) Verify(raw, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}
