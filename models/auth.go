// models/auth.go

package models

type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	FirstName   string `json:"firstName" validate:"required"`
	LastName    string `json:"lastName" validate:"required"`
	DateOfBirth string `json:"dateOfBirth" validate:"required"`
	Gender      string `json:"gender" validate:"required"`
	Address     string `json:"address" validate:"required"`
	Country     string `json:"country" validate:"required"`
	Mobile      string `json:"mobile" validate:"required"`
	CountryCode string `json:"countryCode" validate:"required"`
	AccountType string `json:"accountType,omitempty"` // defaults to "personal"
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyPhoneRequest struct {
	UserID string `json:"userId" validate:"required"`
	Code   string `json:"code" validate:"required"`
}

type ResendCodeRequest struct {
	UserID string `json:"userId" validate:"required"`
	Mobile string `json:"mobile" validate:"required"`
}

type TwoFactorTokenRequest struct {
	UserID string `json:"userId" validate:"required"`
	Token  string `json:"token" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// UpdateProfileRequest carries a partial profile update. Pointer fields
// distinguish "absent, keep existing" (nil) from "set to this value",
// including the empty string.
type UpdateProfileRequest struct {
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`
	Gender      *string `json:"gender,omitempty"`
	Address     *string `json:"address,omitempty"`
	Country     *string `json:"country,omitempty"`
	Mobile      *string `json:"mobile,omitempty"`
	CountryCode *string `json:"countryCode,omitempty"`
	AccountType *string `json:"accountType,omitempty"`
}
