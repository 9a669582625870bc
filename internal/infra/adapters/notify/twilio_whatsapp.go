package notify

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

	"esim-storefront/internal/config"
	"esim-storefront/internal/domain/ports/adapter"
)

var _ adapter.WhatsAppSender = (*TwilioWhatsApp)(nil)

const twilioDefaultBase = "https://api.twilio.com"

// TwilioWhatsApp sends WhatsApp messages through the Twilio Messages resource.
type TwilioWhatsApp struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
}

func NewTwilioWhatsApp(cfg config.TwilioConfig) (*TwilioWhatsApp, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, errors.New("twilio credentials or sender empty")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = twilioDefaultBase
	}
	return &TwilioWhatsApp{
		baseURL:    base,
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       whatsappAddr(cfg.From),
		client:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func whatsappAddr(phone string) string {
	if strings.HasPrefix(phone, "whatsapp:") {
		return phone
	}
	return "whatsapp:" + phone
}

func (t *TwilioWhatsApp) SendWhatsApp(ctx context.Context, toPhone, body string) error {
	if toPhone == "" {
		return errors.New("twilio: empty recipient")
	}
	form := url.Values{
		"To":   {whatsappAddr(toPhone)},
		"From": {t.from},
		"Body": {body},
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, url.PathEscape(t.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("twilio: %d %s", apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("twilio: status %d", resp.StatusCode)
	}
	return nil
}
