// services/identity_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/clearport/clearport_backend/models"
)

// How long a phone verification code stays valid.
const verificationCodeTTL = 10 * time.Minute

// Clock skew tolerance for TOTP tokens, in time steps.
const totpSkewSteps uint = 1

// CredentialStore is the persistence contract for user records. Update
// must replace the record atomically; the service serializes its own
// read-modify-write cycles per user id on top of that.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Insert(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
}

// ErrStoreNotFound is returned by CredentialStore implementations when no
// record matches.
var ErrStoreNotFound = errors.New("user record not found")

// ErrStoreDuplicate is returned by CredentialStore implementations when an
// insert violates the unique email index.
var ErrStoreDuplicate = errors.New("duplicate user record")

// PasswordHasher is the one-way credential transform.
type PasswordHasher interface {
	Hash(raw string) (string, error)
	Verify(raw, hash string) bool
}

// CodeGenerator produces short-lived numeric verification codes.
type CodeGenerator interface {
	Generate() (string, error)
}

// NotificationSender dispatches a verification code to its destination.
// Dispatch is best effort: the workflow logs failures and moves on.
type NotificationSender interface {
	Send(destination, message string) error
}

// TOTPVerifier validates time-based one-time tokens and produces new
// shared secrets for authenticator apps.
type TOTPVerifier interface {
	GenerateSecret(accountLabel string) (secret, provisioningURI string, err error)
	ProvisioningURI(accountLabel, secret string) string
	Verify(secret, token string, skewSteps uint) bool
}

// RegistrationResult is returned by Register.
type RegistrationResult struct {
	UserID                    string `json:"userId"`
	Email                     string `json:"email"`
	RequiresPhoneVerification bool   `json:"requiresPhoneVerification"`
}

// LoginResult is returned by Login. When RequiresPhoneVerification is set
// the credentials were correct but no session may be issued yet; a fresh
// verification code has already been dispatched to Mobile.
type LoginResult struct {
	RequiresPhoneVerification bool         `json:"requiresPhoneVerification"`
	RequiresTwoFactor         bool         `json:"requiresTwoFactor"`
	UserID                    string       `json:"userId"`
	Mobile                    string       `json:"mobile,omitempty"`
	User                      *models.User `json:"user,omitempty"`
}

// TwoFactorEnrollment is returned by BeginTwoFactorEnrollment.
type TwoFactorEnrollment struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioningUri"`
}

// IdentityService orchestrates registration, phone verification, TOTP
// enrollment, login and profile mutation. All decisions are functions of
// the stored user state plus the request input; side effects are confined
// to CredentialStore writes and best-effort notification dispatch.
type IdentityService struct {
	store  CredentialStore
	hasher PasswordHasher
	codes  CodeGenerator
	sender NotificationSender
	totp   TOTPVerifier
	logger *log.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewIdentityService wires the workflow engine with its collaborators.
func NewIdentityService(store CredentialStore, hasher PasswordHasher, codes CodeGenerator, sender NotificationSender, totp TOTPVerifier) *IdentityService {
	return &IdentityService{
		store:  store,
		hasher: hasher,
		codes:  codes,
		sender: sender,
		totp:   totp,
		logger: log.New(os.Stdout, "[IDENTITY] ", log.LstdFlags),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lockUser serializes read-modify-write cycles for a single user id so
// that concurrent operations on the same record cannot interleave. Last
// write wins, deterministically.
func (s *IdentityService) lockUser(id primitive.ObjectID) func() {
	key := id.Hex()
	s.mu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// internal logs the collaborator fault and returns the opaque ErrInternal
// so collaborator error text never reaches untrusted callers.
func (s *IdentityService) internal(op string, err error) error {
	s.logger.Printf("%s: %v", op, err)
	return fmt.Errorf("%s: %w", op, ErrInternal)
}

// dispatchCode sends a verification code to the user's mobile. Send
// failures are logged, never propagated: a committed state transition
// must not be rolled back because SMS delivery failed.
func (s *IdentityService) dispatchCode(user *models.User, code string) {
	msg := fmt.Sprintf("Your ClearPort verification code is: %s. This code will expire in 10 minutes.", code)
	if err := s.sender.Send(user.FullMobile(), msg); err != nil {
		s.logger.Printf("failed to send verification code to %s: %v", user.FullMobile(), err)
	}
}

// issueCode generates a fresh verification code and stamps it onto the
// user with its expiry. Any previously issued code is overwritten.
func (s *IdentityService) issueCode(user *models.User) (string, error) {
	code, err := s.codes.Generate()
	if err != nil {
		return "", err
	}
	user.Verification = &models.VerificationInfo{
		Code:      code,
		ExpiresAt: s.now().Add(verificationCodeTTL),
	}
	return code, nil
}

// Register creates a new unverified account and dispatches a phone
// verification code.
func (s *IdentityService) Register(ctx context.Context, req models.RegisterRequest) (*RegistrationResult, error) {
	exists, err := s.store.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, s.internal("register: email lookup", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, s.internal("register: password hash", err)
	}

	accountType := req.AccountType
	if accountType == "" {
		accountType = models.AccountTypePersonal
	}

	now := s.now()
	user := &models.User{
		ID:            primitive.NewObjectID(),
		Email:         req.Email,
		Password:      hash,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		DateOfBirth:   req.DateOfBirth,
		Gender:        req.Gender,
		Address:       req.Address,
		Country:       req.Country,
		Mobile:        req.Mobile,
		CountryCode:   req.CountryCode,
		AccountType:   accountType,
		PhoneVerified: false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	code, err := s.issueCode(user)
	if err != nil {
		return nil, s.internal("register: code generation", err)
	}

	if err := s.store.Insert(ctx, user); err != nil {
		if errors.Is(err, ErrStoreDuplicate) {
			return nil, ErrDuplicateEmail
		}
		return nil, s.internal("register: insert", err)
	}

	s.dispatchCode(user, code)

	return &RegistrationResult{
		UserID:                    user.ID.Hex(),
		Email:                     user.Email,
		RequiresPhoneVerification: true,
	}, nil
}

// VerifyPhone consumes a verification code. The code is single use: it is
// cleared in the same write that marks the phone verified.
func (s *IdentityService) VerifyPhone(ctx context.Context, userID primitive.ObjectID, code string) error {
	defer s.lockUser(userID)()

	user, err := s.findByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.PhoneVerified {
		return ErrAlreadyVerified
	}
	if user.Verification == nil || user.Verification.Code != code || s.now().After(user.Verification.ExpiresAt) {
		return ErrInvalidOrExpiredCode
	}

	user.PhoneVerified = true
	user.Verification = nil
	user.UpdatedAt = s.now()
	if err := s.store.Update(ctx, user); err != nil {
		return s.internal("verify phone: update", err)
	}
	return nil
}

// Login checks credentials. With an unverified phone it issues a fresh
// code and reports requiresPhoneVerification instead of a session; this
// is policy, not a failure, and lastLogin stays untouched no matter how
// often correct credentials are re-entered.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	// The email lookup only discovers the id. The record is re-read
	// under the lock; a write based on the first read could revert a
	// concurrently committed transition.
	ref, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	defer s.lockUser(ref.ID)()
	user, err := s.findByID(ctx, ref.ID)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(password, user.Password) {
		return nil, ErrInvalidCredentials
	}

	if !user.PhoneVerified {
		code, err := s.issueCode(user)
		if err != nil {
			return nil, s.internal("login: code generation", err)
		}
		user.UpdatedAt = s.now()
		if err := s.store.Update(ctx, user); err != nil {
			return nil, s.internal("login: update", err)
		}
		s.dispatchCode(user, code)
		return &LoginResult{
			RequiresPhoneVerification: true,
			UserID:                    user.ID.Hex(),
			Mobile:                    user.Mobile,
		}, nil
	}

	now := s.now()
	user.LastLogin = &now
	user.UpdatedAt = now
	if err := s.store.Update(ctx, user); err != nil {
		return nil, s.internal("login: update", err)
	}

	sanitized := user.Sanitized()
	return &LoginResult{
		RequiresTwoFactor: user.HasTwoFactor(),
		UserID:            user.ID.Hex(),
		User:              &sanitized,
	}, nil
}

// BeginTwoFactorEnrollment generates a fresh shared secret and stores it
// as the pending temp secret. The secret only becomes active once
// ConfirmTwoFactorEnrollment sees a valid token for it.
func (s *IdentityService) BeginTwoFactorEnrollment(ctx context.Context, userID primitive.ObjectID) (*TwoFactorEnrollment, error) {
	defer s.lockUser(userID)()

	user, err := s.findByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	secret, uri, err := s.totp.GenerateSecret(user.Email)
	if err != nil {
		return nil, s.internal("2fa enrollment: secret generation", err)
	}

	if user.TwoFactor == nil {
		user.TwoFactor = &models.TwoFactorInfo{}
	}
	user.TwoFactor.TempSecret = secret
	user.UpdatedAt = s.now()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, s.internal("2fa enrollment: update", err)
	}

	return &TwoFactorEnrollment{Secret: secret, ProvisioningURI: uri}, nil
}

// TwoFactorEnrollmentURI returns the provisioning URI for the pending
// enrollment so the transport layer can render it as a QR code.
func (s *IdentityService) TwoFactorEnrollmentURI(ctx context.Context, userID primitive.ObjectID) (string, error) {
	user, err := s.findByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.TwoFactor == nil || user.TwoFactor.TempSecret == "" {
		return "", ErrNoEnrollmentInProgress
	}
	return s.totp.ProvisioningURI(user.Email, user.TwoFactor.TempSecret), nil
}

// ConfirmTwoFactorEnrollment promotes the pending temp secret to the
// active secret once the submitted token validates against it.
func (s *IdentityService) ConfirmTwoFactorEnrollment(ctx context.Context, userID primitive.ObjectID, token string) (*models.User, error) {
	defer s.lockUser(userID)()

	user, err := s.findByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactor == nil || user.TwoFactor.TempSecret == "" {
		return nil, ErrNoEnrollmentInProgress
	}
	if !s.totp.Verify(user.TwoFactor.TempSecret, token, totpSkewSteps) {
		return nil, ErrInvalidToken
	}

	user.TwoFactor.Secret = user.TwoFactor.TempSecret
	user.TwoFactor.TempSecret = ""
	user.TwoFactor.Enabled = true
	user.TwoFactor.Verified = true
	user.UpdatedAt = s.now()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, s.internal("2fa confirmation: update", err)
	}

	sanitized := user.Sanitized()
	return &sanitized, nil
}

// VerifyTwoFactor is the login-time 2FA challenge.
func (s *IdentityService) VerifyTwoFactor(ctx context.Context, userID primitive.ObjectID, token string) (*models.User, error) {
	defer s.lockUser(userID)()

	user, err := s.findByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.HasTwoFactor() {
		return nil, ErrNotEnabled
	}
	if !s.totp.Verify(user.TwoFactor.Secret, token, totpSkewSteps) {
		return nil, ErrInvalidToken
	}

	now := s.now()
	user.LastLogin = &now
	user.UpdatedAt = now
	if err := s.store.Update(ctx, user); err != nil {
		return nil, s.internal("2fa verification: update", err)
	}

	sanitized := user.Sanitized()
	return &sanitized, nil
}

// ResendVerificationCode regenerates the code and expiry, overwriting any
// prior unused code, and redispatches it. The claimed phone must match
// the one on record.
func (s *IdentityService) ResendVerificationCode(ctx context.Context, userID primitive.ObjectID, claimedMobile string) error {
	defer s.lockUser(userID)()

	user, err := s.findByID(ctx, userID)
	if err != nil {
		return err
	}
	if claimedMobile != user.Mobile {
		return ErrPhoneMismatch
	}

	code, err := s.issueCode(user)
	if err != nil {
		return s.internal("resend code: code generation", err)
	}
	user.UpdatedAt = s.now()
	if err := s.store.Update(ctx, user); err != nil {
		return s.internal("resend code: update", err)
	}
	s.dispatchCode(user, code)
	return nil
}

// ChangePassword re-hashes and persists the new password after the old
// one checks out.
func (s *IdentityService) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	ref, err := s.findByEmail(ctx, email)
	if err != nil {
		return err
	}

	defer s.lockUser(ref.ID)()
	user, err := s.findByID(ctx, ref.ID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(oldPassword, user.Password) {
		return ErrInvalidOldPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.internal("change password: password hash", err)
	}

	user.Password = hash
	user.UpdatedAt = s.now()
	if err := s.store.Update(ctx, user); err != nil {
		return s.internal("change password: update", err)
	}
	return nil
}

// UpdateProfile applies only the fields present in the request; nil
// pointers leave the stored value unchanged.
func (s *IdentityService) UpdateProfile(ctx context.Context, email string, req models.UpdateProfileRequest) (*models.User, error) {
	ref, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	defer s.lockUser(ref.ID)()
	user, err := s.findByID(ctx, ref.ID)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.DateOfBirth != nil {
		user.DateOfBirth = *req.DateOfBirth
	}
	if req.Gender != nil {
		user.Gender = *req.Gender
	}
	if req.Address != nil {
		user.Address = *req.Address
	}
	if req.Country != nil {
		user.Country = *req.Country
	}
	if req.Mobile != nil {
		user.Mobile = *req.Mobile
	}
	if req.CountryCode != nil {
		user.CountryCode = *req.CountryCode
	}
	if req.AccountType != nil {
		user.AccountType = *req.AccountType
	}
	user.UpdatedAt = s.now()
	if err := s.store.Update(ctx, user); err != nil {
		return nil, s.internal("update profile: update", err)
	}

	sanitized := user.Sanitized()
	return &sanitized, nil
}

// GetProfile returns the sanitized profile for an authenticated user.
func (s *IdentityService) GetProfile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := s.findByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	sanitized := user.Sanitized()
	return &sanitized, nil
}

func (s *IdentityService) findByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.internal("user lookup", err)
	}
	return user, nil
}

func (s *IdentityService) findByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.internal("user lookup", err)
	}
	return user, nil
}
