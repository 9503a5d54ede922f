package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/clearport/clearport_backend/models"
)

type fakeStore struct {
	mu    sync.Mutex
	users map[string]models.User
	fail  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]models.User)}
}

func cloneUser(u models.User) models.User {
	if u.Verification != nil {
		v := *u.Verification
		u.Verification = &v
	}
	if u.TwoFactor != nil {
		t := *u.TwoFactor
		u.TwoFactor = &t
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		u.LastLogin = &t
	}
	return u
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	for _, u := range f.users {
		if u.Email == email {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, ErrStoreNotFound
}

func (f *fakeStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	u, ok := f.users[id.Hex()]
	if !ok {
		return nil, ErrStoreNotFound
	}
	c := cloneUser(u)
	return &c, nil
}

func (f *fakeStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return false, f.fail
	}
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Insert(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	for _, u := range f.users {
		if u.Email == user.Email {
			return ErrStoreDuplicate
		}
	}
	f.users[user.ID.Hex()] = cloneUser(*user)
	return nil
}

func (f *fakeStore) Update(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	if _, ok := f.users[user.ID.Hex()]; !ok {
		return ErrStoreNotFound
	}
	f.users[user.ID.Hex()] = cloneUser(*user)
	return nil
}

func (f *fakeStore) stored(t *testing.T, id string) models.User {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	require.True(t, ok, "user %s not in store", id)
	return cloneUser(u)
}

type stubHasher struct{}

func (stubHasher) Hash(raw string) (string, error) { return "hashed:" + raw, nil }
func (stubHasher) Verify(raw, hash string) bool    { return hash == "hashed:"+raw }

type stubCodes struct {
	mu sync.Mutex
	n  int
}

func (s *stubCodes) Generate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("%06d", 100000+s.n), nil
}

type recordingSender struct {
	mu    sync.Mutex
	sends []string
	err   error
}

func (s *recordingSender) Send(destination, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, destination+"|"+message)
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sends)
}

type stubTOTP struct{}

func (stubTOTP) GenerateSecret(label string) (string, string, error) {
	return "secret-" + label, "otpauth://totp/" + label, nil
}

func (stubTOTP) ProvisioningURI(label, secret string) string {
	return "otpauth://totp/" + label + "?secret=" + secret
}

func (stubTOTP) Verify(secret, token string, _ uint) bool {
	return token == "tok-"+secret
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestService() (*IdentityService, *fakeStore, *recordingSender, *fakeClock) {
	store := newFakeStore()
	sender := &recordingSender{}
	svc := NewIdentityService(store, stubHasher{}, &stubCodes{}, sender, stubTOTP{})
	svc.logger = log.New(io.Discard, "", 0)
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	return svc, store, sender, clock
}

func registerRequest(email string) models.RegisterRequest {
	return models.RegisterRequest{
		Email:       email,
		Password:    "secret-pass",
		FirstName:   "Nadia",
		LastName:    "Haddad",
		DateOfBirth: "1990-04-12",
		Gender:      "female",
		Address:     "Beirut",
		Country:     "Lebanon",
		Mobile:      "71123456",
		CountryCode: "+961",
	}
}

func mustRegister(t *testing.T, svc *IdentityService, email string) primitive.ObjectID {
	t.Helper()
	result, err := svc.Register(context.Background(), registerRequest(email))
	require.NoError(t, err)
	id, err := primitive.ObjectIDFromHex(result.UserID)
	require.NoError(t, err)
	return id
}

func TestRegister(t *testing.T) {
	svc, store, sender, clock := newTestService()

	result, err := svc.Register(context.Background(), registerRequest("nadia@example.com"))
	require.NoError(t, err)
	assert.Equal(t, "nadia@example.com", result.Email)
	assert.True(t, result.RequiresPhoneVerification)

	stored := store.stored(t, result.UserID)
	assert.Equal(t, "hashed:secret-pass", stored.Password)
	assert.Equal(t, models.AccountTypePersonal, stored.AccountType)
	assert.False(t, stored.PhoneVerified)
	require.NotNil(t, stored.Verification)
	assert.Equal(t, clock.Now().Add(10*time.Minute), stored.Verification.ExpiresAt)

	require.Equal(t, 1, sender.count())
	assert.Contains(t, sender.sends[0], "+96171123456|")
	assert.Contains(t, sender.sends[0], stored.Verification.Code)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestService()
	mustRegister(t, svc, "nadia@example.com")

	_, err := svc.Register(context.Background(), registerRequest("nadia@example.com"))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestRegisterSurvivesSenderFailure(t *testing.T) {
	svc, store, sender, _ := newTestService()
	sender.err = errors.New("gateway down")

	result, err := svc.Register(context.Background(), registerRequest("nadia@example.com"))
	require.NoError(t, err)

	stored := store.stored(t, result.UserID)
	assert.NotNil(t, stored.Verification)
}

func TestVerifyPhone(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := mustRegister(t, svc, "nadia@example.com")
	code := store.stored(t, id.Hex()).Verification.Code

	require.NoError(t, svc.VerifyPhone(context.Background(), id, code))

	stored := store.stored(t, id.Hex())
	assert.True(t, stored.PhoneVerified)
	assert.Nil(t, stored.Verification, "code must be cleared in the same write")
}

func TestVerifyPhoneWrongCode(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := mustRegister(t, svc, "nadia@example.com")

	err := svc.VerifyPhone(context.Background(), id, "000000")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
	assert.False(t, store.stored(t, id.Hex()).PhoneVerified)
}

func TestVerifyPhoneExpiredCode(t *testing.T) {
	svc, store, _, clock := newTestService()
	id := mustRegister(t, svc, "nadia@example.com")
	code := store.stored(t, id.Hex()).Verification.Code

	clock.Advance(11 * time.Minute)
	err := svc.VerifyPhone(context.Background(), id, code)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestVerifyPhoneAlreadyVerified(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := mustRegister(t, svc, "nadia@example.com")
	code := store.stored(t, id.Hex()).Verification.Code

	require.NoError(t, svc.VerifyPhone(context.Background(), id, code))
	err := svc.VerifyPhone(context.Background(), id, code)
	assert.ErrorIs(t, err, ErrAlreadyVerified)
}

func TestVerifyPhoneUnknownUser(t *testing.T) {
	svc, _, _, _ := newTestService()
	err := svc.VerifyPhone(context.Background(), primitive.NewObjectID(), "123456")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoginUnknownAccount(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Login(context.Background(), "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _, _ := newTestService()
	mustRegister(t, svc, "nadia@example.com")

	_, err := svc.Login(context.Background(), "nadia@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnverifiedPhone(t *testing.T) {
	svc, store, sender, _ := newTestService()
	id := mustRegister(t, svc, "nadia@example.com")
	firstCode := store.stored(t, id.Hex()).Verification.Code

	result, err := svc.Login(context.Background(), "nadia@example.com", "secret-pass")
	require.NoError(t, err)
	assert.True(t, result.RequiresPhoneVerification)
	assert.Equal(t, "71123456", result.Mobile)
	assert.Nil(t, result.User)

	stored := store.stored(t, id.Hex())
	assert.Nil(t, stored.LastLogin, "unverified login must not count as a login")
	assert.NotEqual(t, firstCode, stored.Verification.Code, "login must reissue the code")
	assert.Equal(t, 2, sender.count())

	// The superseded code no longer works.
	err = svc.VerifyPhone(context.Background(), id, firstCode)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestLoginVerifiedPhone(t *testing.T) {
	svc, store, _, clock := newTestService()
	id := mustRegister(t, svc, "nadia@example.com")
	code := store.stored(t, id.Hex()).Verification.Code
	require.NoError(t, svc.VerifyPhone(context.Background(), id, code))

	clock.Advance(time.Hour)
	result, err := svc.Login(context.Background(), "nadia@example.com", "secret-pass")
	require.NoError(t, err)
	assert.False(t, result.RequiresPhoneVerification)
	assert.False(t, result.RequiresTwoFactor)
	require.NotNil(t, result.User)
	assert.Empty(t, result.User.Password, "login response must not leak the hash")
	require.NotNil(t, result.User.LastLogin)
	assert.Equal(t, clock.Now(), *result.User.LastLogin)
}

func TestResendVerificationCode(t *testing.T) {
	svc, store, sender, _ := newTestService()
	id := mustRegister(t, svc, "nadia@example.com")
	firstCode := store.stored(t, id.Hex()).Verification.Code

	require.NoError(t, svc.ResendVerificationCode(context.Background(), id, "71123456"))

	stored := store.stored(t, id.Hex())
	assert.NotEqual(t, firstCode, stored.Verification.Code)
	assert.Equal(t, 2, sender.count())
}

func TestResendVerificationCodePhoneMismatch(t *testing.T) {
	svc, _, sender, _ := newTestService()
	id := mustRegister(t, svc, "nadia@example.com")

	err := svc.ResendVerificationCode(context.Background(), id, "70999999")
	assert.ErrorIs(t, err, ErrPhoneMismatch)
	assert.Equal(t, 1, sender.count(), "no code may be sent on mismatch")
}

func verifiedUser(t *testing.T, svc *IdentityService, store *fakeStore, email string) primitive.ObjectID {
	t.Helper()
	id := mustRegister(t, svc, email)
	code := store.stored(t, id.Hex()).Verification.Code
	require.NoError(t, svc.VerifyPhone(context.Background(), id, code))
	return id
}

func TestTwoFactorEnrollment(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := verifiedUser(t, svc, store, "nadia@example.com")

	enrollment, err := svc.BeginTwoFactorEnrollment(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "secret-nadia@example.com", enrollment.Secret)

	stored := store.stored(t, id.Hex())
	assert.Equal(t, enrollment.Secret, stored.TwoFactor.TempSecret)
	assert.False(t, stored.HasTwoFactor(), "pending enrollment is not active")

	user, err := svc.ConfirmTwoFactorEnrollment(context.Background(), id, "tok-"+enrollment.Secret)
	require.NoError(t, err)
	require.NotNil(t, user.TwoFactor)
	assert.True(t, user.TwoFactor.Enabled)
	assert.Empty(t, user.TwoFactor.Secret, "sanitized profile must not expose the secret")

	stored = store.stored(t, id.Hex())
	assert.True(t, stored.HasTwoFactor())
	assert.Equal(t, enrollment.Secret, stored.TwoFactor.Secret)
	assert.Empty(t, stored.TwoFactor.TempSecret)
}

func TestConfirmTwoFactorWithoutEnrollment(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := verifiedUser(t, svc, store, "nadia@example.com")

	_, err := svc.ConfirmTwoFactorEnrollment(context.Background(), id, "tok-anything")
	assert.ErrorIs(t, err, ErrNoEnrollmentInProgress)
}

func TestConfirmTwoFactorBadToken(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := verifiedUser(t, svc, store, "nadia@example.com")

	_, err := svc.BeginTwoFactorEnrollment(context.Background(), id)
	require.NoError(t, err)

	_, err = svc.ConfirmTwoFactorEnrollment(context.Background(), id, "tok-wrong")
	assert.ErrorIs(t, err, ErrInvalidToken)

	stored := store.stored(t, id.Hex())
	assert.False(t, stored.HasTwoFactor())
	assert.NotEmpty(t, stored.TwoFactor.TempSecret, "failed confirmation keeps the enrollment pending")
}

func enrollTwoFactor(t *testing.T, svc *IdentityService, id primitive.ObjectID) string {
	t.Helper()
	enrollment, err := svc.BeginTwoFactorEnrollment(context.Background(), id)
	require.NoError(t, err)
	_, err = svc.ConfirmTwoFactorEnrollment(context.Background(), id, "tok-"+enrollment.Secret)
	require.NoError(t, err)
	return enrollment.Secret
}

func TestLoginWithTwoFactorEnabled(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := verifiedUser(t, svc, store, "nadia@example.com")
	enrollTwoFactor(t, svc, id)

	result, err := svc.Login(context.Background(), "nadia@example.com", "secret-pass")
	require.NoError(t, err)
	assert.True(t, result.RequiresTwoFactor)
}

func TestVerifyTwoFactor(t *testing.T) {
	svc, store, _, clock := newTestService()
	id := verifiedUser(t, svc, store, "nadia@example.com")
	secret := enrollTwoFactor(t, svc, id)

	clock.Advance(time.Hour)
	user, err := svc.VerifyTwoFactor(context.Background(), id, "tok-"+secret)
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)
	assert.Equal(t, clock.Now(), *user.LastLogin)
}

func TestVerifyTwoFactorBadToken(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := verifiedUser(t, svc, store, "nadia@example.com")
	enrollTwoFactor(t, svc, id)

	_, err := svc.VerifyTwoFactor(context.Background(), id, "tok-wrong")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTwoFactorNotEnabled(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := verifiedUser(t, svc, store, "nadia@example.com")

	_, err := svc.VerifyTwoFactor(context.Background(), id, "tok-anything")
	assert.ErrorIs(t, err, ErrNotEnabled)
}

func TestTwoFactorTokensAreNotInterchangeable(t *testing.T) {
	svc, store, _, _ := newTestService()
	nadia := verifiedUser(t, svc, store, "nadia@example.com")
	omar := verifiedUser(t, svc, store, "omar@example.com")
	enrollTwoFactor(t, svc, nadia)
	omarSecret := enrollTwoFactor(t, svc, omar)

	_, err := svc.VerifyTwoFactor(context.Background(), nadia, "tok-"+omarSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTwoFactorEnrollmentURI(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := verifiedUser(t, svc, store, "nadia@example.com")

	_, err := svc.TwoFactorEnrollmentURI(context.Background(), id)
	assert.ErrorIs(t, err, ErrNoEnrollmentInProgress)

	enrollment, err := svc.BeginTwoFactorEnrollment(context.Background(), id)
	require.NoError(t, err)

	uri, err := svc.TwoFactorEnrollmentURI(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, uri, enrollment.Secret)
}

func TestChangePassword(t *testing.T) {
	svc, store, _, _ := newTestService()
	verifiedUser(t, svc, store, "nadia@example.com")

	err := svc.ChangePassword(context.Background(), "nadia@example.com", "wrong", "new-password")
	assert.ErrorIs(t, err, ErrInvalidOldPassword)

	require.NoError(t, svc.ChangePassword(context.Background(), "nadia@example.com", "secret-pass", "new-password"))

	_, err = svc.Login(context.Background(), "nadia@example.com", "secret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nadia@example.com", "new-password")
	assert.NoError(t, err)
}

func TestUpdateProfilePartial(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := verifiedUser(t, svc, store, "nadia@example.com")

	newFirst := "Layla"
	emptyAddress := ""
	user, err := svc.UpdateProfile(context.Background(), "nadia@example.com", models.UpdateProfileRequest{
		FirstName: &newFirst,
		Address:   &emptyAddress,
	})
	require.NoError(t, err)
	assert.Equal(t, "Layla", user.FirstName)
	assert.Equal(t, "", user.Address, "explicit empty string clears the field")
	assert.Equal(t, "Haddad", user.LastName, "absent fields keep their values")

	stored := store.stored(t, id.Hex())
	assert.Equal(t, "Layla", stored.FirstName)
	assert.Equal(t, "Haddad", stored.LastName)
}

func TestGetProfileSanitized(t *testing.T) {
	svc, _, _, _ := newTestService()
	id := mustRegister(t, svc, "nadia@example.com")

	user, err := svc.GetProfile(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, user.Password)
	assert.Nil(t, user.Verification)
}

// hookStore runs a callback once, right after the first email lookup
// returns, to interleave a competing operation between a read and the
// write that follows it.
type hookStore struct {
	*fakeStore
	onFindByEmail func()
}

func (h *hookStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := h.fakeStore.FindByEmail(ctx, email)
	if h.onFindByEmail != nil {
		fn := h.onFindByEmail
		h.onFindByEmail = nil
		fn()
	}
	return user, err
}

func TestLoginDoesNotRevertConcurrentVerification(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := mustRegister(t, svc, "nadia@example.com")
	code := store.stored(t, id.Hex()).Verification.Code

	hook := &hookStore{fakeStore: store}
	hook.onFindByEmail = func() {
		require.NoError(t, svc.VerifyPhone(context.Background(), id, code))
	}
	svc.store = hook

	result, err := svc.Login(context.Background(), "nadia@example.com", "secret-pass")
	require.NoError(t, err)
	assert.False(t, result.RequiresPhoneVerification,
		"login must see the verification committed during its lookup")

	stored := store.stored(t, id.Hex())
	assert.True(t, stored.PhoneVerified, "a committed verification must survive a concurrent login")
	assert.Nil(t, stored.Verification)
}

func TestChangePasswordKeepsConcurrentVerification(t *testing.T) {
	svc, store, _, _ := newTestService()
	id := mustRegister(t, svc, "nadia@example.com")
	code := store.stored(t, id.Hex()).Verification.Code

	hook := &hookStore{fakeStore: store}
	hook.onFindByEmail = func() {
		require.NoError(t, svc.VerifyPhone(context.Background(), id, code))
	}
	svc.store = hook

	require.NoError(t, svc.ChangePassword(context.Background(), "nadia@example.com", "secret-pass", "new-password"))

	stored := store.stored(t, id.Hex())
	assert.True(t, stored.PhoneVerified)
	assert.Equal(t, "hashed:new-password", stored.Password)
}

func TestStoreFaultsStayOpaque(t *testing.T) {
	svc, store, _, _ := newTestService()
	store.fail = errors.New("connection reset by mongod")

	_, err := svc.Login(context.Background(), "nadia@example.com", "secret-pass")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInternal)
	assert.NotContains(t, err.Error(), "mongod", "collaborator detail must not leak")
}
