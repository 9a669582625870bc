package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"esim-storefront/internal/config"
	"esim-storefront/internal/domain/ports/adapter"
)

var _ adapter.Mailer = (*SendGridMailer)(nil)

const sendgridDefaultBase = "https://api.sendgrid.com"

// SendGridMailer sends through the v3 mail/send endpoint.
type SendGridMailer struct {
	baseURL  string
	apiKey   string
	from     string
	fromName string
	client   *http.Client
}

func NewSendGridMailer(cfg config.EmailConfig) (*SendGridMailer, error) {
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil, errors.New("sendgrid api key or sender empty")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = sendgridDefaultBase
	}
	return &SendGridMailer{
		baseURL:  base,
		apiKey:   cfg.APIKey,
		from:     cfg.FromEmail,
		fromName: cfg.FromName,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type sgAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (m *SendGridMailer) Send(ctx context.Context, e adapter.Email) error {
	if e.To == "" {
		return errors.New("sendgrid: empty recipient")
	}
	var content []sgContent
	if e.TextBody != "" {
		content = append(content, sgContent{Type: "text/plain", Value: e.TextBody})
	}
	if e.HTMLBody != "" {
		content = append(content, sgContent{Type: "text/html", Value: e.HTMLBody})
	}
	if len(content) == 0 {
		return errors.New("sendgrid: empty body")
	}
	payload := map[string]any{
		"personalizations": []map[string]any{{"to": []sgAddress{{Email: e.To, Name: e.ToName}}}},
		"from":             sgAddress{Email: m.from, Name: m.fromName},
		"subject":          e.Subject,
		"content":          content,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v3/mail/send", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, body)
	}
	return nil
}
