package http_handlers

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vladosShikos/losb-back/internal/domain"
	"github.com/vladosShikos/losb-back/internal/metrics"
	appCtx "github.com/vladosShikos/losb-back/internal/pkg/context"
	"github.com/vladosShikos/losb-back/internal/transport/http/dto"
	"github.com/vladosShikos/losb-back/internal/transport/http/response"
)

type PhoneService interface {
	GetPhone(ctx context.Context, telegramID int64) (domain.Phone, error)
	RequestVerification(ctx context.Context, telegramID int64, code int, number int64) (string, error)
	VerifyCode(ctx context.Context, telegramID int64, otp string, code int, number int64) (domain.Phone, error)
	ResendCooldown() time.Duration
}

type PhoneHandler struct {
	svc     PhoneService
	echoOtp bool
	log     zerolog.Logger
}

// NewPhoneHandler builds the phone endpoints. echoOtp puts the issued code
// into the 202 body and must only be set in dev.
func NewPhoneHandler(svc PhoneService, echoOtp bool, lg zerolog.Logger) *PhoneHandler {
	return &PhoneHandler{svc: svc, echoOtp: echoOtp, log: lg}
}

// GetPhone handles GET /api/v1/user/phone
func (h *PhoneHandler) GetPhone(w http.ResponseWriter, r *http.Request) {
	tid, ok := appCtx.GetTelegramID(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}

	phone, err := h.svc.GetPhone(r.Context(), tid)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	response.OK(w, dto.NewPhoneResponse(phone))
}

// RequestVerification handles POST /api/v1/user/phone/request
func (h *PhoneHandler) RequestVerification(w http.ResponseWriter, r *http.Request) {
	tid, ok := appCtx.GetTelegramID(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}

	var req dto.RequestPhoneVerificationRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	otp, err := h.svc.RequestVerification(r.Context(), tid, req.Code, req.Number)
	metrics.RecordVerification(metrics.OperationRequest, err)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	h.log.Debug().
		Str("request_id", appCtx.GetRequestID(r.Context())).
		Int64("telegram_id", tid).
		Str("phone", domain.NewPhone(req.Code, req.Number).Masked()).
		Msg("phone_verification_sent")

	out := dto.RequestPhoneVerificationResponse{
		Sent:              true,
		RetryAfterSeconds: int(math.Ceil(h.svc.ResendCooldown().Seconds())),
	}
	if h.echoOtp {
		out.Otp = otp
	}
	response.Accepted(w, out)
}

// Verify handles PUT /api/v1/user/phone/verify
func (h *PhoneHandler) Verify(w http.ResponseWriter, r *http.Request) {
	tid, ok := appCtx.GetTelegramID(r.Context())
	if !ok {
		response.WriteError(w, r, domain.ErrTokenMissing())
		return
	}

	var req dto.VerifyPhoneRequest
	if err := response.DecodeJSON(r, &req); err != nil {
		response.WriteError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		response.WriteError(w, r, err)
		return
	}

	phone, err := h.svc.VerifyCode(r.Context(), tid, req.Otp, req.Code, req.Number)
	metrics.RecordVerification(metrics.OperationVerify, err)
	if err != nil {
		response.WriteError(w, r, err)
		return
	}

	h.log.Debug().
		Str("request_id", appCtx.GetRequestID(r.Context())).
		Int64("telegram_id", tid).
		Str("phone", phone.Masked()).
		Msg("phone_verified")

	response.OK(w, dto.NewPhoneResponse(phone))
}
