// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account types
const (
	AccountTypePersonal = "personal"
	AccountTypeBusiness = "business"
)

// User model
type User struct {
	ID            primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Email         string             `json:"email" bson:"email"`
	Password      string             `json:"password,omitempty" bson:"password"`
	FirstName     string             `json:"firstName" bson:"firstName"`
	LastName      string             `json:"lastName" bson:"lastName"`
	DateOfBirth   string             `json:"dateOfBirth,omitempty" bson:"dateOfBirth,omitempty"`
	Gender        string             `json:"gender,omitempty" bson:"gender,omitempty"`
	Address       string             `json:"address,omitempty" bson:"address,omitempty"`
	Country       string             `json:"country,omitempty" bson:"country,omitempty"`
	Mobile        string             `json:"mobile" bson:"mobile"`
	CountryCode   string             `json:"countryCode" bson:"countryCode"`
	AccountType   string             `json:"accountType" bson:"accountType"` // "personal" or "business"
	PhoneVerified bool               `json:"phoneVerified" bson:"phoneVerified"`
	Verification  *VerificationInfo  `json:"-" bson:"verification,omitempty"`
	TwoFactor     *TwoFactorInfo     `json:"twoFactor,omitempty" bson:"twoFactor,omitempty"`
	LastLogin     *time.Time         `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// VerificationInfo holds a pending phone verification code. The code is
// single use: it is cleared the moment it matches.
type VerificationInfo struct {
	Code      string    `bson:"code"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// TwoFactorInfo holds the TOTP enrollment state. TempSecret carries an
// unconfirmed enrollment secret; it is promoted to Secret once the user
// confirms with a valid token, so at most one of the two is active.
type TwoFactorInfo struct {
	Enabled    bool   `json:"enabled" bson:"enabled"`
	Verified   bool   `json:"verified" bson:"verified"`
	Secret     string `json:"-" bson:"secret,omitempty"`
	TempSecret string `json:"-" bson:"tempSecret,omitempty"`
}

// Sanitized returns the user projection that is safe to hand to clients:
// no password hash, no verification code, no TOTP secrets.
func (u User) Sanitized() User {
	u.Password = ""
	u.Verification = nil
	if u.TwoFactor != nil {
		u.TwoFactor = &TwoFactorInfo{
			Enabled:  u.TwoFactor.Enabled,
			Verified: u.TwoFactor.Verified,
		}
	}
	return u
}

// HasTwoFactor reports whether the user has a confirmed TOTP secret.
func (u *User) HasTwoFactor() bool {
	return u.TwoFactor != nil && u.TwoFactor.Enabled && u.TwoFactor.Secret != ""
}

// FullMobile returns the dialable number including the country code.
func (u *User) FullMobile() string {
	return u.CountryCode + u.Mobile
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
