package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vladosShikos/losb-back/internal/application/verification"
	"github.com/vladosShikos/losb-back/internal/metrics"
)

const (
	DefaultSmsRuBaseURL = "https://sms.ru"
	ProviderSmsRu       = "smsru"

	unavailable = "SMS service unavailable"
)

type SmsRuConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// SmsRuGateway sends messages through the sms.ru HTTP API.
type SmsRuGateway struct {
	cfg    SmsRuConfig
	client *http.Client
	lg     zerolog.Logger
}

func NewSmsRuGateway(cfg SmsRuConfig, client *http.Client, lg zerolog.Logger) (*SmsRuGateway, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sms.ru: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultSmsRuBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &SmsRuGateway{
		cfg:    cfg,
		client: client,
		lg:     lg.With().Str("component", "smsru_gateway").Logger(),
	}, nil
}

// smsRuResponse is the json=1 reply of /sms/send.
type smsRuResponse struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	StatusText string `json:"status_text"`
	SMS        map[string]struct {
		Status     string `json:"status"`
		StatusCode int    `json:"status_code"`
		StatusText string `json:"status_text"`
		SmsID      string `json:"sms_id"`
	} `json:"sms"`
}

func (g *SmsRuGateway) Send(ctx context.Context, destination, message string) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveSmsSend(ProviderSmsRu, err, time.Since(start)) }()

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	q := url.Values{}
	q.Set("api_id", g.cfg.APIKey)
	q.Set("to", destination)
	q.Set("msg", message)
	q.Set("json", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/sms/send?"+q.Encode(), nil)
	if err != nil {
		return failure("invalid request", nil)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		// *url.Error carries the full URL (api key, message); keep only the inner error.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		if errors.Is(err, context.DeadlineExceeded) || (uerr != nil && uerr.Timeout()) {
			return failure("timeout", err)
		}
		return failure("transport error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return failure(fmt.Sprintf("HTTP %d", resp.StatusCode), nil)
	}

	var out smsRuResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return failure("invalid response", err)
	}

	if out.Status != "OK" {
		return failure(statusText(out.StatusText, out.Status), nil)
	}
	if r, ok := out.SMS[destination]; ok && r.Status != "OK" {
		return failure(statusText(r.StatusText, r.Status), nil)
	}

	g.lg.Debug().Int("status_code", out.StatusCode).Msg("sms accepted")
	return nil
}

func statusText(text, status string) string {
	if text != "" {
		return text
	}
	if status != "" {
		return status
	}
	return "unknown status"
}

func failure(detail string, cause error) *verification.DeliveryError {
	return &verification.DeliveryError{Reason: unavailable + ": " + detail, Cause: cause}
}
