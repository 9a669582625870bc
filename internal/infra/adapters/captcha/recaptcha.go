package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"esim-storefront/internal/domain/ports/adapter"
)

var _ adapter.CaptchaVerifier = (*ReCaptcha)(nil)

const siteVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// ReCaptcha verifies v3 tokens. An unsuccessful verification scores 0.
type ReCaptcha struct {
	secret   string
	endpoint string
	client   *http.Client
}

func NewReCaptcha(secret, endpoint string) (*ReCaptcha, error) {
	if secret == "" {
		return nil, errors.New("recaptcha secret empty")
	}
	if endpoint == "" {
		endpoint = siteVerifyURL
	}
	return &ReCaptcha{secret: secret, endpoint: endpoint, client: &http.Client{Timeout: 5 * time.Second}}, nil
}

func (r *ReCaptcha) Verify(ctx context.Context, token, remoteIP string) (float64, error) {
	form := url.Values{"secret": {r.secret}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("recaptcha: status %d", resp.StatusCode)
	}
	var out struct {
		Success    bool     `json:"success"`
		Score      float64  `json:"score"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("recaptcha decode: %w", err)
	}
	if !out.Success {
		return 0, nil
	}
	return out.Score, nil
}

// Static always returns the same score. Used when captcha is disabled.
type Static float64

func (s Static) Verify(ctx context.Context, token, remoteIP string) (float64, error) {
	return float64(s), nil
}
