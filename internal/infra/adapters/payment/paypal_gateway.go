package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"esim-storefront/internal/config"
	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/adapter"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

var _ adapter.ClearingGateway = (*PayPalGateway)(nil)

const paypalDefaultBase = "https://api-m.sandbox.paypal.com"

// PayPalGateway implements the Orders v2 create/capture flow with a cached client-credentials token.
type PayPalGateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
	now          func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewPayPalGateway(cfg config.PayPalConfig) (*PayPalGateway, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("paypal client credentials empty")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = paypalDefaultBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PayPalGateway{
		baseURL:      base,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       &http.Client{Timeout: timeout},
		now:          time.Now,
	}, nil
}

func (g *PayPalGateway) Name() string { return "paypal" }

func (g *PayPalGateway) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.token != "" && g.now().Before(g.expiresAt) {
		return g.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &statusError{Code: resp.StatusCode, Body: truncate(string(b), 256)}
	}
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("paypal: empty access token")
	}
	g.token = out.AccessToken
	// refresh a minute early
	g.expiresAt = g.now().Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return g.token, nil
}

func (g *PayPalGateway) headers(ctx context.Context) (map[string]string, error) {
	tok, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"Authorization":     "Bearer " + tok,
		"PayPal-Request-Id": ulid.Make().String(),
	}, nil
}

type ppAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type ppLink struct {
	Href string `json:"href"`
	Rel  string `json:"rel"`
}

type ppOrder struct {
	ID            string   `json:"id"`
	Status        string   `json:"status"`
	Links         []ppLink `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string   `json:"id"`
				Status string   `json:"status"`
				Amount ppAmount `json:"amount"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

// CreateClearingSession creates a CAPTURE intent order; the PayPal order id is the session token.
func (g *PayPalGateway) CreateClearingSession(ctx context.Context, req adapter.ClearingRequest) (adapter.ClearingSession, error) {
	h, err := g.headers(ctx)
	if err != nil {
		return adapter.ClearingSession{}, &domain.GatewayError{Provider: g.Name(), Op: "create session", Err: err}
	}
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": req.OrderID,
			"custom_id":    req.PaymentID,
			"invoice_id":   fmt.Sprintf("%d-%s", req.FriendlyID, short(req.PaymentID)),
			"description":  req.Description,
			"amount":       ppAmount{CurrencyCode: orDefault(req.Currency, "ILS"), Value: req.Amount.StringFixed(2)},
		}},
		"application_context": map[string]string{
			"return_url":  req.ReturnURL,
			"cancel_url":  req.CancelURL,
			"user_action": "PAY_NOW",
		},
	}
	var out ppOrder
	if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/v2/checkout/orders", h, payload, &out); err != nil {
		return adapter.ClearingSession{}, &domain.GatewayError{Provider: g.Name(), Op: "create session", Err: err}
	}
	approve := ""
	for _, l := range out.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			approve = l.Href
			break
		}
	}
	var details []string
	if out.ID == "" {
		details = append(details, "missing order id")
	}
	if approve == "" {
		details = append(details, "missing approve link")
	}
	if len(details) > 0 {
		return adapter.ClearingSession{}, &domain.GatewayError{Provider: g.Name(), Op: "create session", Details: details}
	}
	return adapter.ClearingSession{SessionToken: out.ID, RedirectURL: approve, ExternalPaymentID: out.ID}, nil
}

// CaptureSession captures an approved order. A 422 from PayPal (declined instrument,
// order not approved) reports Approved=false; other failures return an error.
func (g *PayPalGateway) CaptureSession(ctx context.Context, sessionToken, payerRef string) (model.CaptureResult, error) {
	h, err := g.headers(ctx)
	if err != nil {
		return model.CaptureResult{}, err
	}
	var out ppOrder
	err = doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/v2/checkout/orders/"+url.PathEscape(sessionToken)+"/capture", h, struct{}{}, &out)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusUnprocessableEntity {
			return model.CaptureResult{Approved: false, Status: "UNPROCESSABLE_ENTITY", ExternalPaymentID: sessionToken}, nil
		}
		return model.CaptureResult{}, err
	}

	res := model.CaptureResult{Status: out.Status, ExternalPaymentID: out.ID}
	if len(out.PurchaseUnits) > 0 && len(out.PurchaseUnits[0].Payments.Captures) > 0 {
		c := out.PurchaseUnits[0].Payments.Captures[0]
		res.ClearingLogID = c.ID
		if amt, err := decimal.NewFromString(c.Amount.Value); err == nil {
			res.Amount = amt
		}
		res.Approved = out.Status == "COMPLETED" && c.Status == "COMPLETED"
	}
	return res, nil
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
