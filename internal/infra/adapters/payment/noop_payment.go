package payment

import (
	"context"
	"fmt"
	"sync"

	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/domain/ports/adapter"

	"github.com/shopspring/decimal"
)

var _ adapter.ClearingGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway approves every session in memory. The redirect points straight at
// the return url with the session token appended, for local runs without a PSP.
type NoopPaymentGateway struct {
	mu       sync.Mutex
	seq      int64
	sessions map[string]decimal.Decimal
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{sessions: make(map[string]decimal.Decimal)}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) CreateClearingSession(ctx context.Context, req adapter.ClearingRequest) (adapter.ClearingSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	token := fmt.Sprintf("noop-%d", g.seq)
	g.sessions[token] = req.Amount
	return adapter.ClearingSession{
		SessionToken:      token,
		RedirectURL:       appendQuery(req.ReturnURL, "ClearingTraceId", token),
		ExternalPaymentID: "pay-" + token,
		ClearingLogID:     "log-" + token,
	}, nil
}

func (g *NoopPaymentGateway) CaptureSession(ctx context.Context, sessionToken, payerRef string) (model.CaptureResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	amt, ok := g.sessions[sessionToken]
	if !ok {
		return model.CaptureResult{Approved: false, Status: "unknown session"}, nil
	}
	return model.CaptureResult{
		Approved:          true,
		Amount:            amt,
		ExternalPaymentID: "pay-" + sessionToken,
		ClearingLogID:     "log-" + sessionToken,
		Status:            "approved",
	}, nil
}
