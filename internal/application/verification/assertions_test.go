package verification

import (
	"strings"
	"testing"

	"github.com/vladosShikos/losb-back/internal/domain"
)

func requireErrCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error code=%q, got nil", code)
	}
	if !domain.Is(err, code) {
		t.Fatalf("expected code=%q, got err=%v", code, err)
	}
}

// requireNoOtpLeak fails if otp shows up anywhere in err's text or meta.
func requireNoOtpLeak(t *testing.T, err error, otp string) {
	t.Helper()
	if err == nil {
		return
	}
	if strings.Contains(err.Error(), otp) {
		t.Fatalf("error text leaks otp: %v", err)
	}
	de, ok := err.(*domain.Error)
	if !ok {
		return
	}
	if strings.Contains(de.Message, otp) {
		t.Fatalf("error message leaks otp: %q", de.Message)
	}
	for k, v := range de.Meta {
		if strings.Contains(v, otp) {
			t.Fatalf("error meta %q leaks otp: %q", k, v)
		}
	}
}

func requireNoPending(t *testing.T, h *harness) {
	t.Helper()
	if p, ok := h.uow.pendingFor(testUserID); ok {
		t.Fatalf("expected no pending verification, got %+v", p)
	}
}

func requirePending(t *testing.T, h *harness) domain.PendingVerification {
	t.Helper()
	p, ok := h.uow.pendingFor(testUserID)
	if !ok {
		t.Fatalf("expected a pending verification")
	}
	return p
}
