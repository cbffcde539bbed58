package verification

import (
	"context"
	"testing"
	"time"

	"github.com/vladosShikos/losb-back/internal/domain"
)

func TestVerifyCode_NoPending(t *testing.T) {
	t.Parallel()

	h := newHarness(t, defaultConfig())

	_, err := h.svc.VerifyCode(context.Background(), testUserID, "4821", testCode, testNumber)
	requireErrCode(t, err, domain.CodeNoPendingVerification)
}

func TestVerifyCode_AlreadyVerified_KeepsPending(t *testing.T) {
	t.Parallel()

	h := newHarness(t, defaultConfig())
	h.uow.seedUser(domain.User{TelegramID: testUserID, Phone: domain.NewPhone(testCode, testNumber)})
	h.seedOtp("4821", 0, 0)

	_, err := h.svc.VerifyCode(context.Background(), testUserID, "4821", testCode, testNumber)
	requireErrCode(t, err, domain.CodePhoneAlreadyVerified)
	requirePending(t, h)
}

func TestVerifyCode_Expired_DeletesRecord(t *testing.T) {
	t.Parallel()

	h := newHarness(t, defaultConfig())
	h.seedOtp("4821", 0, 61*time.Second)

	_, err := h.svc.VerifyCode(context.Background(), testUserID, "4821", testCode, testNumber)
	requireErrCode(t, err, domain.CodeVerificationExpired)
	requireNoPending(t, h)

	// the next call has nothing left to check against
	_, err = h.svc.VerifyCode(context.Background(), testUserID, "4821", testCode, testNumber)
	requireErrCode(t, err, domain.CodeNoPendingVerification)
}

func TestVerifyCode_ExactlyAtCooldown_NotExpired(t *testing.T) {
	t.Parallel()

	h := newHarness(t, defaultConfig())
	h.seedOtp("4821", 0, 60*time.Second)

	if _, err := h.svc.VerifyCode(context.Background(), testUserID, "4821", testCode, testNumber); err != nil {
		t.Fatalf("expected success at the window edge, got %v", err)
	}
}

func TestVerifyCode_AttemptsExceeded_DeletesRecord(t *testing.T) {
	t.Parallel()

	h := newHarness(t, defaultConfig())
	h.seedOtp("4821", 4, 0)

	// even the right code is refused once the budget is spent
	_, err := h.svc.VerifyCode(context.Background(), testUserID, "4821", testCode, testNumber)
	requireErrCode(t, err, domain.CodeAttemptsExceeded)
	requireNoPending(t, h)
	if h.uow.user(testUserID).Phone.Verified() {
		t.Fatalf("phone must not be committed")
	}
}

func TestVerifyCode_Mismatch_IncrementsAndKeepsRecord(t *testing.T) {
	t.Parallel()

	h := newHarness(t, defaultConfig())
	h.seedOtp("4821", 0, 0)

	_, err := h.svc.VerifyCode(context.Background(), testUserID, "1111", testCode, testNumber)
	requireErrCode(t, err, domain.CodeVerificationFailed)
	requireNoOtpLeak(t, err, "4821")

	p := requirePending(t, h)
	if p.Attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", p.Attempts)
	}
	if p.OtpHash != "h:4821" {
		t.Fatalf("otp must not change on mismatch")
	}
}

func TestVerifyCode_RightCodeWrongNumber_Fails(t *testing.T) {
	t.Parallel()

	h := newHarness(t, defaultConfig())
	h.seedOtp("4821", 0, 0)

	_, err := h.svc.VerifyCode(context.Background(), testUserID, "4821", testCode, testNumber+1)
	requireErrCode(t, err, domain.CodeVerificationFailed)

	if p := requirePending(t, h); p.Attempts != 1 {
		t.Fatalf("expected attempts=1, got %d", p.Attempts)
	}
	if h.uow.user(testUserID).Phone.Verified() {
		t.Fatalf("phone must not be committed")
	}
}

func TestVerifyCode_Success_CommitsAndPublishes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, defaultConfig())
	h.seedOtp("4821", 2, 10*time.Second)

	phone, err := h.svc.VerifyCode(context.Background(), testUserID, "4821", testCode, testNumber)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if !phone.Equal(domain.NewPhone(testCode, testNumber)) {
		t.Fatalf("unexpected phone %+v", phone)
	}

	u := h.uow.user(testUserID)
	if !u.Phone.Equal(phone) {
		t.Fatalf("user phone not committed: %+v", u.Phone)
	}
	if u.Name != "Ivan" {
		t.Fatalf("other user fields must survive, got %+v", u)
	}
	if !u.UpdatedAt.Equal(h.clock.Now()) {
		t.Fatalf("expected UpdatedAt=now, got %v", u.UpdatedAt)
	}
	requireNoPending(t, h)

	if len(h.pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(h.pub.events))
	}
	evt := h.pub.events[0]
	if evt.TelegramID != testUserID || evt.Code != testCode || evt.Number != testNumber {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestVerifyCode_PublishFailure_StillCommitted(t *testing.T) {
	t.Parallel()

	h := newHarness(t, defaultConfig())
	h.pub.err = errBoom
	h.seedOtp("4821", 0, 0)

	if _, err := h.svc.VerifyCode(context.Background(), testUserID, "4821", testCode, testNumber); err != nil {
		t.Fatalf("publish failure must not fail verification: %v", err)
	}
	if !h.uow.user(testUserID).Phone.Verified() {
		t.Fatalf("expected committed phone")
	}

	found := false
	for _, a := range h.audit.actions() {
		if a == "phone_verified_publish_failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected publish failure to be audited")
	}
}

func TestVerifyCode_SaveFailure_RollsBack(t *testing.T) {
	t.Parallel()

	h := newHarness(t, defaultConfig())
	h.uow.saveUserErr = domain.ErrDBUnavailable(errBoom)
	h.seedOtp("4821", 0, 0)

	_, err := h.svc.VerifyCode(context.Background(), testUserID, "4821", testCode, testNumber)
	requireErrCode(t, err, "db_unavailable")

	requirePending(t, h)
	if h.uow.user(testUserID).Phone.Verified() {
		t.Fatalf("phone must not be committed")
	}
}

func TestVerifyCode_IncrementFailure_ReturnsStoreError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, defaultConfig())
	h.uow.incrementErr = domain.ErrDBUnavailable(errBoom)
	h.seedOtp("4821", 0, 0)

	_, err := h.svc.VerifyCode(context.Background(), testUserID, "0000", testCode, testNumber)
	requireErrCode(t, err, "db_unavailable")
}

func TestVerifyCode_HasherFailure(t *testing.T) {
	t.Parallel()

	uow := newFakeUoW()
	svc, err := NewService(uow, fakeReadUsers{uow}, &fakeOtp{}, fakeHasher{matchErr: errBoom}, &fakeGateway{}, nil, &fakeClock{now: time.Now()}, defaultConfig())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	uow.seedUser(domain.User{TelegramID: testUserID, Phone: domain.PlaceholderPhone(testCode)})
	uow.seedPending(domain.PendingVerification{TelegramID: testUserID, OtpHash: "h:1", Claimed: domain.NewPhone(testCode, testNumber), CreatedAt: time.Now()})

	_, err = svc.VerifyCode(context.Background(), testUserID, "1", testCode, testNumber)
	requireErrCode(t, err, "hash_failed")
	if p, _ := uow.pendingFor(testUserID); p.Attempts != 0 {
		t.Fatalf("hash errors must not count as attempts")
	}
}

func TestGetPhone(t *testing.T) {
	t.Parallel()

	h := newHarness(t, defaultConfig())

	p, err := h.svc.GetPhone(context.Background(), testUserID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Verified() || p.Code != testCode {
		t.Fatalf("expected placeholder phone, got %+v", p)
	}

	_, err = h.svc.GetPhone(context.Background(), 1)
	requireErrCode(t, err, "user_not_found")
}
