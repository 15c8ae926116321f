package recovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-identity-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}

type mockProfileStore struct{ mock.Mock }

func (m *mockProfileStore) GetByPhone(ctx context.Context, phone string) (*domain.BusinessProfile, error) {
	args := m.Called(ctx, phone)
	if p, _ := args.Get(0).(*domain.BusinessProfile); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockOTPStore struct{ mock.Mock }

func (m *mockOTPStore) Put(ctx context.Context, o *domain.PasswordResetOTP) error {
	return m.Called(ctx, o).Error(0)
}
func (m *mockOTPStore) LatestUnused(ctx context.Context, userID string) (*domain.PasswordResetOTP, error) {
	args := m.Called(ctx, userID)
	if o, _ := args.Get(0).(*domain.PasswordResetOTP); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTPStore) ChargeAttempt(ctx context.Context, userID, otpID string) (int, error) {
	args := m.Called(ctx, userID, otpID)
	return args.Int(0), args.Error(1)
}
func (m *mockOTPStore) MarkUsed(ctx context.Context, userID, otpID string) error {
	return m.Called(ctx, userID, otpID).Error(0)
}

type mockContextStore struct{ mock.Mock }

func (m *mockContextStore) Put(ctx context.Context, rc *domain.RecoveryContext) error {
	return m.Called(ctx, rc).Error(0)
}
func (m *mockContextStore) Get(ctx context.Context, contextID string) (*domain.RecoveryContext, error) {
	args := m.Called(ctx, contextID)
	if rc, _ := args.Get(0).(*domain.RecoveryContext); rc != nil {
		return rc, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockContextStore) MarkVerified(ctx context.Context, contextID string) error {
	return m.Called(ctx, contextID).Error(0)
}
func (m *mockContextStore) Delete(ctx context.Context, contextID string) error {
	return m.Called(ctx, contextID).Error(0)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, phone, msg string) error {
	return m.Called(ctx, phone, msg).Error(0)
}

// --- builder ---

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newService(us *mockUserStore, ps *mockProfileStore, os *mockOTPStore, cs *mockContextStore, ml *mockMailer, sms *mockSMSSender, maxAttempts int) Service {
	return NewService(ServiceDeps{
		UserRepo:    us,
		ProfileRepo: ps,
		OTPRepo:     os,
		ContextRepo: cs,
		Mailer:      ml,
		SMSSender:   sms,
		MaxAttempts: maxAttempts,
		Now:         func() time.Time { return testNow },
	})
}

func validContext(verified bool) *domain.RecoveryContext {
	return &domain.RecoveryContext{
		ContextID:   "ctx1",
		UserID:      "u1",
		Method:      domain.MethodEmail,
		OTPVerified: verified,
		CreatedAt:   testNow,
		ExpiresAt:   testNow.Add(15 * time.Minute).Unix(),
	}
}

func liveOTP(code string) *domain.PasswordResetOTP {
	return &domain.PasswordResetOTP{
		UserID:    "u1",
		OTPID:     "01HZZZZZZZZZZZZZZZZZZZZZZZ",
		Code:      code,
		Method:    domain.MethodEmail,
		CreatedAt: testNow,
		ExpiresAt: testNow.Add(10 * time.Minute).Unix(),
	}
}

// --- Request ---

func TestRequest_EmailHappyPath(t *testing.T) {
	us := &mockUserStore{}
	os := &mockOTPStore{}
	cs := &mockContextStore{}
	ml := &mockMailer{}

	us.On("GetByEmail", mock.Anything, "a@b.com").Return(&domain.User{UserID: "u1", Email: "a@b.com"}, nil)
	var issued *domain.PasswordResetOTP
	os.On("Put", mock.Anything, mock.AnythingOfType("*domain.PasswordResetOTP")).
		Run(func(args mock.Arguments) { issued = args.Get(1).(*domain.PasswordResetOTP) }).
		Return(nil)
	ml.On("SendEmail", "a@b.com", mock.Anything, mock.Anything).Return(nil)
	cs.On("Put", mock.Anything, mock.AnythingOfType("*domain.RecoveryContext")).Return(nil)

	svc := newService(us, nil, os, cs, ml, nil, 0)
	result, err := svc.Request(context.Background(), "a@b.com", domain.MethodEmail)

	require.NoError(t, err)
	assert.NotEmpty(t, result.ContextID)
	require.NotNil(t, issued)
	assert.Len(t, issued.Code, 6)
	assert.Equal(t, testNow.Add(10*time.Minute).Unix(), issued.ExpiresAt)
	os.AssertExpectations(t)
	ml.AssertExpectations(t)
	cs.AssertExpectations(t)
}

func TestRequest_UnknownEmail_ReturnsDecoyContext(t *testing.T) {
	us := &mockUserStore{}
	os := &mockOTPStore{}
	cs := &mockContextStore{}
	ml := &mockMailer{}

	us.On("GetByEmail", mock.Anything, "nobody@b.com").Return(nil, domain.ErrNotFound)
	var stored *domain.RecoveryContext
	cs.On("Put", mock.Anything, mock.AnythingOfType("*domain.RecoveryContext")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.RecoveryContext) }).
		Return(nil)

	svc := newService(us, nil, os, cs, ml, nil, 0)
	result, err := svc.Request(context.Background(), "nobody@b.com", domain.MethodEmail)

	require.NoError(t, err)
	assert.NotEmpty(t, result.ContextID)
	require.NotNil(t, stored)
	assert.Empty(t, stored.UserID)
	// No code was issued and nothing was mailed.
	os.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	ml.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequest_StorageErrorPropagates_NoDecoy(t *testing.T) {
	us := &mockUserStore{}
	os := &mockOTPStore{}
	cs := &mockContextStore{}
	ml := &mockMailer{}

	storeErr := errors.New("dynamodb unavailable")
	us.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, storeErr)

	svc := newService(us, nil, os, cs, ml, nil, 0)
	result, err := svc.Request(context.Background(), "a@b.com", domain.MethodEmail)

	// An outage must not masquerade as a successful send.
	require.ErrorIs(t, err, storeErr)
	assert.Nil(t, result)
	cs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	os.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	ml.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequest_PhoneLookupError_Propagates(t *testing.T) {
	ps := &mockProfileStore{}
	os := &mockOTPStore{}
	cs := &mockContextStore{}
	sms := &mockSMSSender{}

	storeErr := errors.New("dynamodb unavailable")
	ps.On("GetByPhone", mock.Anything, "+5215512345678").Return(nil, storeErr)

	svc := newService(nil, ps, os, cs, nil, sms, 0)
	result, err := svc.Request(context.Background(), "+5215512345678", domain.MethodPhone)

	require.ErrorIs(t, err, storeErr)
	assert.Nil(t, result)
	cs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRequest_PhoneResolvesViaProfile(t *testing.T) {
	ps := &mockProfileStore{}
	os := &mockOTPStore{}
	cs := &mockContextStore{}
	sms := &mockSMSSender{}

	ps.On("GetByPhone", mock.Anything, "+5215550001").Return(&domain.BusinessProfile{UserID: "u1", Phone: "+5215550001"}, nil)
	os.On("Put", mock.Anything, mock.AnythingOfType("*domain.PasswordResetOTP")).Return(nil)
	sms.On("SendSMS", mock.Anything, "+5215550001", mock.Anything).Return(nil)
	cs.On("Put", mock.Anything, mock.AnythingOfType("*domain.RecoveryContext")).Return(nil)

	svc := newService(nil, ps, os, cs, nil, sms, 0)
	result, err := svc.Request(context.Background(), "+5215550001", domain.MethodPhone)

	require.NoError(t, err)
	assert.NotEmpty(t, result.ContextID)
	sms.AssertExpectations(t)
}

func TestRequest_DispatchFailure_NoContextCreated(t *testing.T) {
	us := &mockUserStore{}
	os := &mockOTPStore{}
	cs := &mockContextStore{}
	ml := &mockMailer{}

	us.On("GetByEmail", mock.Anything, "a@b.com").Return(&domain.User{UserID: "u1", Email: "a@b.com"}, nil)
	os.On("Put", mock.Anything, mock.AnythingOfType("*domain.PasswordResetOTP")).Return(nil)
	ml.On("SendEmail", "a@b.com", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	svc := newService(us, nil, os, cs, ml, nil, 0)
	_, err := svc.Request(context.Background(), "a@b.com", domain.MethodEmail)

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDelivery))
	cs.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestRequest_UnknownMethod_ReturnsBadRequest(t *testing.T) {
	svc := newService(nil, nil, nil, nil, nil, nil, 0)
	_, err := svc.Request(context.Background(), "a@b.com", "carrier-pigeon")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

// --- VerifyCode ---

func TestVerifyCode_CorrectCode_Accepted(t *testing.T) {
	os := &mockOTPStore{}
	cs := &mockContextStore{}

	cs.On("Get", mock.Anything, "ctx1").Return(validContext(false), nil)
	os.On("LatestUnused", mock.Anything, "u1").Return(liveOTP("042619"), nil)
	os.On("ChargeAttempt", mock.Anything, "u1", mock.Anything).Return(1, nil)
	os.On("MarkUsed", mock.Anything, "u1", mock.Anything).Return(nil)
	cs.On("MarkVerified", mock.Anything, "ctx1").Return(nil)

	svc := newService(nil, nil, os, cs, nil, nil, 0)
	result, err := svc.VerifyCode(context.Background(), "ctx1", "042619")

	require.NoError(t, err)
	assert.Equal(t, CodeAccepted, result.Status)
	os.AssertExpectations(t)
	cs.AssertExpectations(t)
}

func TestVerifyCode_WrongCode_ChargesAttemptAndReportsRemaining(t *testing.T) {
	os := &mockOTPStore{}
	cs := &mockContextStore{}

	cs.On("Get", mock.Anything, "ctx1").Return(validContext(false), nil)
	os.On("LatestUnused", mock.Anything, "u1").Return(liveOTP("042619"), nil)
	os.On("ChargeAttempt", mock.Anything, "u1", mock.Anything).Return(2, nil)

	svc := newService(nil, nil, os, cs, nil, nil, 5)
	result, err := svc.VerifyCode(context.Background(), "ctx1", "000000")

	require.NoError(t, err)
	assert.Equal(t, CodeInvalid, result.Status)
	assert.Equal(t, 3, result.AttemptsLeft)
	os.AssertNotCalled(t, "MarkUsed", mock.Anything, mock.Anything, mock.Anything)
	cs.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything)
}

func TestVerifyCode_OverCap_ExhaustsEvenWithCorrectCode(t *testing.T) {
	// Three wrong guesses with cap 3 leave the record exhausted; the fourth
	// attempt is rejected before the code is ever compared.
	os := &mockOTPStore{}
	cs := &mockContextStore{}

	cs.On("Get", mock.Anything, "ctx1").Return(validContext(false), nil)
	os.On("LatestUnused", mock.Anything, "u1").Return(liveOTP("042619"), nil)
	os.On("ChargeAttempt", mock.Anything, "u1", mock.Anything).Return(4, nil)
	os.On("MarkUsed", mock.Anything, "u1", mock.Anything).Return(nil)

	svc := newService(nil, nil, os, cs, nil, nil, 3)
	result, err := svc.VerifyCode(context.Background(), "ctx1", "042619")

	require.NoError(t, err)
	assert.Equal(t, CodeTooManyAttempts, result.Status)
	os.AssertExpectations(t)
	cs.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything)
}

func TestVerifyCode_ExpiredCode_NotMarkedUsed(t *testing.T) {
	os := &mockOTPStore{}
	cs := &mockContextStore{}

	expired := liveOTP("042619")
	expired.ExpiresAt = testNow.Add(-time.Minute).Unix()

	cs.On("Get", mock.Anything, "ctx1").Return(validContext(false), nil)
	os.On("LatestUnused", mock.Anything, "u1").Return(expired, nil)
	os.On("ChargeAttempt", mock.Anything, "u1", mock.Anything).Return(1, nil)

	svc := newService(nil, nil, os, cs, nil, nil, 0)
	result, err := svc.VerifyCode(context.Background(), "ctx1", "042619")

	require.NoError(t, err)
	assert.Equal(t, CodeExpired, result.Status)
	os.AssertNotCalled(t, "MarkUsed", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyCode_UsedCode_NoActive(t *testing.T) {
	os := &mockOTPStore{}
	cs := &mockContextStore{}

	cs.On("Get", mock.Anything, "ctx1").Return(validContext(false), nil)
	os.On("LatestUnused", mock.Anything, "u1").Return(nil, domain.ErrNotFound)

	svc := newService(nil, nil, os, cs, nil, nil, 0)
	result, err := svc.VerifyCode(context.Background(), "ctx1", "042619")

	require.NoError(t, err)
	assert.Equal(t, CodeNoActive, result.Status)
}

func TestVerifyCode_DecoyContext_NoActive(t *testing.T) {
	os := &mockOTPStore{}
	cs := &mockContextStore{}

	decoy := validContext(false)
	decoy.UserID = ""
	cs.On("Get", mock.Anything, "ctx1").Return(decoy, nil)

	svc := newService(nil, nil, os, cs, nil, nil, 0)
	result, err := svc.VerifyCode(context.Background(), "ctx1", "042619")

	require.NoError(t, err)
	assert.Equal(t, CodeNoActive, result.Status)
	os.AssertNotCalled(t, "LatestUnused", mock.Anything, mock.Anything)
}

func TestVerifyCode_ZeroPaddedCode_ExactStringMatch(t *testing.T) {
	os := &mockOTPStore{}
	cs := &mockContextStore{}

	cs.On("Get", mock.Anything, "ctx1").Return(validContext(false), nil)
	os.On("LatestUnused", mock.Anything, "u1").Return(liveOTP("001234"), nil)
	os.On("ChargeAttempt", mock.Anything, "u1", mock.Anything).Return(1, nil)

	svc := newService(nil, nil, os, cs, nil, nil, 5)
	// "1234" is not "001234"; leading zeros are significant.
	result, err := svc.VerifyCode(context.Background(), "ctx1", "1234")

	require.NoError(t, err)
	assert.Equal(t, CodeInvalid, result.Status)
}

func TestVerifyCode_MissingContext_NotStarted(t *testing.T) {
	cs := &mockContextStore{}
	cs.On("Get", mock.Anything, "ctx1").Return(nil, domain.ErrNotFound)

	svc := newService(nil, nil, nil, cs, nil, nil, 0)
	_, err := svc.VerifyCode(context.Background(), "ctx1", "042619")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotStarted))
}

func TestVerifyCode_ExpiredContext_NotStarted(t *testing.T) {
	cs := &mockContextStore{}
	rc := validContext(false)
	rc.ExpiresAt = testNow.Add(-time.Second).Unix()
	cs.On("Get", mock.Anything, "ctx1").Return(rc, nil)

	svc := newService(nil, nil, nil, cs, nil, nil, 0)
	_, err := svc.VerifyCode(context.Background(), "ctx1", "042619")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotStarted))
}

func TestVerifyCode_ConcurrentMarkUsedLoss_NoActive(t *testing.T) {
	os := &mockOTPStore{}
	cs := &mockContextStore{}

	cs.On("Get", mock.Anything, "ctx1").Return(validContext(false), nil)
	os.On("LatestUnused", mock.Anything, "u1").Return(liveOTP("042619"), nil)
	os.On("ChargeAttempt", mock.Anything, "u1", mock.Anything).Return(1, nil)
	os.On("MarkUsed", mock.Anything, "u1", mock.Anything).Return(domain.ErrConflict)

	svc := newService(nil, nil, os, cs, nil, nil, 0)
	result, err := svc.VerifyCode(context.Background(), "ctx1", "042619")

	require.NoError(t, err)
	assert.Equal(t, CodeNoActive, result.Status)
	cs.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything)
}

// --- Reset ---

func TestReset_HappyPath(t *testing.T) {
	us := &mockUserStore{}
	cs := &mockContextStore{}

	cs.On("Get", mock.Anything, "ctx1").Return(validContext(true), nil)
	var updates map[string]interface{}
	us.On("Update", mock.Anything, "u1", mock.Anything).
		Run(func(args mock.Arguments) { updates = args.Get(2).(map[string]interface{}) }).
		Return(nil)
	cs.On("Delete", mock.Anything, "ctx1").Return(nil)

	svc := newService(us, nil, nil, cs, nil, nil, 0)
	err := svc.Reset(context.Background(), "ctx1", "new-password-1", "new-password-1")

	require.NoError(t, err)
	hash, ok := updates["password_hash"].(string)
	require.True(t, ok)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("new-password-1")))
	cs.AssertExpectations(t)
}

func TestReset_WithoutVerifiedCode_NotVerified(t *testing.T) {
	cs := &mockContextStore{}
	cs.On("Get", mock.Anything, "ctx1").Return(validContext(false), nil)

	svc := newService(nil, nil, nil, cs, nil, nil, 0)
	err := svc.Reset(context.Background(), "ctx1", "new-password-1", "new-password-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotVerified))
}

func TestReset_DecoyContext_NotVerified(t *testing.T) {
	cs := &mockContextStore{}
	decoy := validContext(true)
	decoy.UserID = ""
	cs.On("Get", mock.Anything, "ctx1").Return(decoy, nil)

	svc := newService(nil, nil, nil, cs, nil, nil, 0)
	err := svc.Reset(context.Background(), "ctx1", "new-password-1", "new-password-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotVerified))
}

func TestReset_ShortPassword_BadRequest(t *testing.T) {
	cs := &mockContextStore{}
	cs.On("Get", mock.Anything, "ctx1").Return(validContext(true), nil)

	svc := newService(nil, nil, nil, cs, nil, nil, 0)
	err := svc.Reset(context.Background(), "ctx1", "short", "short")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestReset_MismatchedConfirmation_BadRequest(t *testing.T) {
	cs := &mockContextStore{}
	cs.On("Get", mock.Anything, "ctx1").Return(validContext(true), nil)

	svc := newService(nil, nil, nil, cs, nil, nil, 0)
	err := svc.Reset(context.Background(), "ctx1", "new-password-1", "new-password-2")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBadRequest))
}

func TestReset_MissingContext_NotStarted(t *testing.T) {
	cs := &mockContextStore{}
	cs.On("Get", mock.Anything, "ctx1").Return(nil, domain.ErrNotFound)

	svc := newService(nil, nil, nil, cs, nil, nil, 0)
	err := svc.Reset(context.Background(), "ctx1", "new-password-1", "new-password-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotStarted))
}
