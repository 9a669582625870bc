package connectivity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"esim-storefront/internal/config"
	"esim-storefront/internal/domain/ports/adapter"

	"github.com/shopspring/decimal"
)

var _ adapter.ConnectivityProvider = (*KeepGoProvider)(nil)

const keepgoDefaultBase = "https://myaccount.keepgo.com/api/v2"

// KeepGoProvider talks to the KeepGo reseller API with apiKey/accessToken headers.
type KeepGoProvider struct {
	baseURL   string
	apiKey    string
	accessTok string
	client    *http.Client
}

func NewKeepGoProvider(cfg config.KeepGoConfig) (*KeepGoProvider, error) {
	if cfg.APIKey == "" || cfg.AccessTok == "" {
		return nil, errors.New("keepgo credentials empty")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = keepgoDefaultBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &KeepGoProvider{baseURL: base, apiKey: cfg.APIKey, accessTok: cfg.AccessTok, client: &http.Client{Timeout: timeout}}, nil
}

type kgSimCard struct {
	ICCID              string          `json:"iccid"`
	LPACode            string          `json:"lpa_code"`
	Status             string          `json:"status"`
	AllowedUsageKB     int64           `json:"allowed_usage_kb"`
	RemainingUsageKB   int64           `json:"remaining_usage_kb"`
	RemainingDays      int             `json:"remaining_days"`
	AutoRefillTurnedOn flexBool        `json:"auto_refill_turned_on"`
	AutoRefillAmountMB int64           `json:"auto_refill_amount_mb"`
	AutoRefillPrice    decimal.Decimal `json:"auto_refill_price"`
	DeactivationDate   string          `json:"deactivation_date"`
}

type kgEnvelope struct {
	Ack      string      `json:"ack"`
	Message  string      `json:"message"`
	SimCard  *kgSimCard  `json:"sim_card"`
	SimCards []kgSimCard `json:"sim_cards"`
	Paging   struct {
		Page  int `json:"page"`
		Pages int `json:"pages"`
	} `json:"paging"`
}

func (e kgEnvelope) ok() bool { return strings.EqualFold(e.Ack, "success") }

func (p *KeepGoProvider) do(ctx context.Context, method, path string, body any) (kgEnvelope, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return kgEnvelope{}, err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rdr)
	if err != nil {
		return kgEnvelope{}, err
	}
	req.Header.Set("apiKey", p.apiKey)
	req.Header.Set("accessToken", p.accessTok)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return kgEnvelope{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return kgEnvelope{}, fmt.Errorf("keepgo %s %s: status %d: %s", method, path, resp.StatusCode, b)
	}
	var out kgEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return kgEnvelope{}, fmt.Errorf("keepgo decode: %w", err)
	}
	return out, nil
}

// CreateLine reports Ack=false without error when KeepGo answers with a non-success ack.
func (p *KeepGoProvider) CreateLine(ctx context.Context, bundleID string, refillMB int64, refillDays int) (adapter.LineAllocation, error) {
	env, err := p.do(ctx, http.MethodPost, "/line/create", map[string]any{
		"bundle_id":   bundleID,
		"refill_mb":   refillMB,
		"refill_days": refillDays,
	})
	if err != nil {
		return adapter.LineAllocation{}, err
	}
	if !env.ok() || env.SimCard == nil {
		return adapter.LineAllocation{Ack: false}, nil
	}
	return adapter.LineAllocation{
		Ack:     true,
		ICCID:   env.SimCard.ICCID,
		LPACode: env.SimCard.LPACode,
		Status:  env.SimCard.Status,
	}, nil
}

func (p *KeepGoProvider) LineDetail(ctx context.Context, iccid string) (adapter.LineDetail, error) {
	env, err := p.do(ctx, http.MethodGet, "/line/"+url.PathEscape(iccid)+"/get_details", nil)
	if err != nil {
		return adapter.LineDetail{}, err
	}
	if !env.ok() || env.SimCard == nil {
		return adapter.LineDetail{}, fmt.Errorf("keepgo line %s: %s", iccid, orMsg(env.Message, env.Ack))
	}
	return toDetail(*env.SimCard), nil
}

func (p *KeepGoProvider) ListLines(ctx context.Context, page, perPage int) (adapter.LinePage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{"page": {strconv.Itoa(page)}, "per_page": {strconv.Itoa(perPage)}}
	env, err := p.do(ctx, http.MethodGet, "/lines?"+q.Encode(), nil)
	if err != nil {
		return adapter.LinePage{}, err
	}
	if !env.ok() {
		return adapter.LinePage{}, fmt.Errorf("keepgo list lines: %s", orMsg(env.Message, env.Ack))
	}
	out := adapter.LinePage{Lines: make([]adapter.LineDetail, 0, len(env.SimCards))}
	for _, s := range env.SimCards {
		out.Lines = append(out.Lines, toDetail(s))
	}
	if env.Paging.Pages > page {
		out.NextPage = page + 1
	}
	return out, nil
}

func toDetail(s kgSimCard) adapter.LineDetail {
	d := adapter.LineDetail{
		ICCID:              s.ICCID,
		Status:             s.Status,
		AllowedUsageKB:     s.AllowedUsageKB,
		RemainingUsageKB:   s.RemainingUsageKB,
		RemainingDays:      s.RemainingDays,
		AutoRefillTurnedOn: bool(s.AutoRefillTurnedOn),
		AutoRefillAmountMB: s.AutoRefillAmountMB,
		AutoRefillPrice:    s.AutoRefillPrice,
	}
	if s.DeactivationDate != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s.DeactivationDate); err == nil {
				d.DeactivatedAt = &t
				break
			}
		}
	}
	return d
}

// flexBool accepts true/false, 0/1 and "0"/"1".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true", "1":
		*b = true
	case "false", "0", "", "null":
		*b = false
	default:
		return fmt.Errorf("invalid bool %s", data)
	}
	return nil
}

func orMsg(msg, ack string) string {
	if msg != "" {
		return msg
	}
	if ack != "" {
		return "ack " + ack
	}
	return "unexpected response"
}
