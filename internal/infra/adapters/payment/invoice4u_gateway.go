package payment

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"esim-storefront/internal/config"
	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/adapter"

	"github.com/shopspring/decimal"
)

var _ adapter.ClearingGateway = (*Invoice4UGateway)(nil)

const invoice4uDefaultBase = "https://api.invoice4u.co.il/Services/ApiService.svc"

// Invoice4UGateway opens hosted credit-card clearing pages and reads back the clearing log.
type Invoice4UGateway struct {
	baseURL    string
	apiKey     string
	terminalID string
	client     *http.Client
}

func NewInvoice4UGateway(cfg config.Invoice4UConfig) (*Invoice4UGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("invoice4u api key empty")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = invoice4uDefaultBase
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Invoice4UGateway{
		baseURL:    base,
		apiKey:     cfg.APIKey,
		terminalID: cfg.TerminalID,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

func (g *Invoice4UGateway) Name() string { return "invoice4u" }

type i4uError struct {
	Error string `json:"Error"`
	Code  int    `json:"Code,omitempty"`
}

type i4uClearingRequest struct {
	Invoice4UUserApiKey   string  `json:"Invoice4UUserApiKey"`
	Type                  string  `json:"Type"`
	CreditCardCompanyType string  `json:"CreditCardCompanyType"`
	TerminalID            string  `json:"TerminalId,omitempty"`
	FullName              string  `json:"FullName"`
	Phone                 string  `json:"Phone"`
	Email                 string  `json:"Email"`
	Sum                   float64 `json:"Sum"`
	Description           string  `json:"Description"`
	PaymentsNum           int     `json:"PaymentsNum"`
	Currency              string  `json:"Currency"`
	OrderIdClientUsage    string  `json:"OrderIdClientUsage"`
	IsDocCreate           bool    `json:"IsDocCreate"`
	IsGeneralClient       bool    `json:"IsGeneralClient"`
	IsAutoCreateCustomer  bool    `json:"IsAutoCreateCustomer"`
	ReturnUrl             string  `json:"ReturnUrl"`
	CallBackUrl           string  `json:"CallBackUrl,omitempty"`
	Language              string  `json:"Language,omitempty"`
}

type i4uClearingResponse struct {
	D struct {
		OpenInfo        string     `json:"OpenInfo"`
		ClearingTraceId string     `json:"ClearingTraceId"`
		PaymentId       string     `json:"PaymentId"`
		ClearingLogId   string     `json:"ClearingLogId"`
		Errors          []i4uError `json:"Errors"`
	} `json:"d"`
}

// CreateClearingSession requires OpenInfo and all three trace ids in the answer.
func (g *Invoice4UGateway) CreateClearingSession(ctx context.Context, req adapter.ClearingRequest) (adapter.ClearingSession, error) {
	sum, _ := req.Amount.Round(2).Float64()
	payload := map[string]any{"request": i4uClearingRequest{
		Invoice4UUserApiKey:   g.apiKey,
		Type:                  "1",
		CreditCardCompanyType: "7",
		TerminalID:            g.terminalID,
		FullName:              req.Customer.FullName,
		Phone:                 req.Customer.Phone,
		Email:                 req.Customer.Email,
		Sum:                   sum,
		Description:           req.Description,
		PaymentsNum:           1,
		Currency:              orDefault(req.Currency, "ILS"),
		OrderIdClientUsage:    req.OrderID,
		IsGeneralClient:       true,
		IsAutoCreateCustomer:  true,
		ReturnUrl:             req.ReturnURL,
		Language:              req.Locale,
	}}

	var out i4uClearingResponse
	if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/ProcessApiRequestV2", nil, payload, &out); err != nil {
		return adapter.ClearingSession{}, &domain.GatewayError{Provider: g.Name(), Op: "create session", Err: err}
	}

	var details []string
	for _, e := range out.D.Errors {
		if e.Error != "" {
			details = append(details, e.Error)
		}
	}
	if out.D.ClearingTraceId == "" {
		details = append(details, "missing ClearingTraceId")
	}
	if out.D.PaymentId == "" {
		details = append(details, "missing PaymentId")
	}
	if out.D.ClearingLogId == "" {
		details = append(details, "missing ClearingLogId")
	}
	if out.D.OpenInfo == "" {
		details = append(details, "missing OpenInfo")
	}
	if len(details) > 0 {
		return adapter.ClearingSession{}, &domain.GatewayError{Provider: g.Name(), Op: "create session", Details: details}
	}

	return adapter.ClearingSession{
		SessionToken:      out.D.ClearingTraceId,
		RedirectURL:       out.D.OpenInfo,
		ExternalPaymentID: out.D.PaymentId,
		ClearingLogID:     out.D.ClearingLogId,
	}, nil
}

type i4uClearingLogResponse struct {
	D struct {
		IsSuccess     bool       `json:"IsSuccess"`
		Status        string     `json:"Status"`
		Amount        float64    `json:"Amount"`
		PaymentId     string     `json:"PaymentId"`
		ClearingLogId string     `json:"ClearingLogId"`
		Errors        []i4uError `json:"Errors"`
	} `json:"d"`
}

// CaptureSession reads the clearing log for the trace id; card sessions are charged on the hosted page.
func (g *Invoice4UGateway) CaptureSession(ctx context.Context, sessionToken, payerRef string) (model.CaptureResult, error) {
	if sessionToken == "" {
		return model.CaptureResult{}, &domain.GatewayError{Provider: g.Name(), Op: "capture", Details: []string{"missing ClearingTraceId"}}
	}
	payload := map[string]any{"request": map[string]string{
		"Invoice4UUserApiKey": g.apiKey,
		"ClearingTraceId":     sessionToken,
	}}
	var out i4uClearingLogResponse
	if err := doJSON(ctx, g.client, http.MethodPost, g.baseURL+"/GetClearingLogByParams", nil, payload, &out); err != nil {
		return model.CaptureResult{}, err
	}
	res := model.CaptureResult{
		Approved:          out.D.IsSuccess && len(out.D.Errors) == 0,
		Amount:            decimal.NewFromFloat(out.D.Amount).Round(2),
		ExternalPaymentID: out.D.PaymentId,
		ClearingLogID:     out.D.ClearingLogId,
		Status:            out.D.Status,
	}
	if res.Status == "" && len(out.D.Errors) > 0 {
		res.Status = out.D.Errors[0].Error
	}
	return res, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
