package api

import (
	"net/http"
	"strings"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/domain/model"
	"esim-storefront/internal/infra/logging"
	"esim-storefront/internal/usecase"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	res, err := s.checkout.PlaceOrder(r.Context(), usecase.PlaceOrderInput{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        strings.TrimSpace(req.Email),
		PhoneNumber:  req.PhoneNumber,
		PlanModelID:  req.PlanModel,
		CouponCode:   req.Coupon,
		ClientPrice:  req.Price,
		CaptchaToken: req.RecaptchaToken,
		RemoteIP:     clientIP(r),
		Provider:     req.Provider,
		Locale:       req.Locale,
	})
	if err != nil {
		if wantsHTML(r) {
			s.redirectError(w, r, err)
			return
		}
		writeError(w, r, s.log, err)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, res.RedirectURL, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, placeOrderResponse{OrderID: res.OrderID, FriendlyID: res.FriendlyID, RedirectURL: res.RedirectURL})
}

// handleResumePayment opens a fresh clearing session and sends the browser to it.
func (s *Server) handleResumePayment(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		s.redirectError(w, r, domain.NewValidationError("id", "required"))
		return
	}
	ctx := logging.WithOrderID(r.Context(), id)
	res, err := s.checkout.ResumePayment(ctx, id, r.URL.Query().Get("provider"))
	if err != nil {
		s.redirectError(w, r.WithContext(ctx), err)
		return
	}
	http.Redirect(w, r, res.RedirectURL, http.StatusSeeOther)
}

// handleCallback is the card clearing return url: ?id=<order>&ClearingTraceId=<token>.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id := strings.TrimSpace(q.Get("id"))
	token := strings.TrimSpace(q.Get("ClearingTraceId"))
	if id == "" && token == "" {
		s.redirectError(w, r, domain.NewValidationError("id", "required"))
		return
	}
	ctx := logging.WithOrderID(r.Context(), id)
	out, err := s.checkout.Capture(ctx, usecase.CaptureInput{OrderID: id, SessionToken: token})
	if err != nil {
		s.redirectError(w, r.WithContext(ctx), err)
		return
	}
	switch out.State {
	case model.CheckoutProvisioned:
		http.Redirect(w, r, s.page(s.pages.Success, "id", out.OrderID), http.StatusSeeOther)
	case model.CheckoutFailed:
		http.Redirect(w, r, s.page(s.pages.Error, "error", "Order"), http.StatusSeeOther)
	default:
		http.Redirect(w, r, s.page(s.pages.Pending, "id", out.OrderID), http.StatusSeeOther)
	}
}

func (s *Server) handlePayPalCreate(w http.ResponseWriter, r *http.Request) {
	var req payPalCreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	ctx := logging.WithOrderID(r.Context(), req.OrderID)
	res, err := s.checkout.ResumePayment(ctx, req.OrderID, "paypal")
	if err != nil {
		writeError(w, r.WithContext(ctx), s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, payPalCreateResponse{ID: res.SessionToken})
}

// handlePayPalCapture receives the PayPal order id from the approval flow, not the storefront order id.
func (s *Server) handlePayPalCapture(w http.ResponseWriter, r *http.Request) {
	var req payPalCaptureRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	out, err := s.checkout.Capture(r.Context(), usecase.CaptureInput{
		SessionToken: req.OrderID,
		PayerRef:     req.PayerID,
		Provider:     "paypal",
	})
	if err != nil {
		writeError(w, r, s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, payPalCaptureResponse{Status: captureStatus(out.State), State: string(out.State)})
}

func captureStatus(st model.CheckoutState) string {
	switch st {
	case model.CheckoutProvisioned, model.CheckoutPaidNoLine, model.CheckoutPaidPendingLine:
		return "COMPLETED"
	case model.CheckoutFailed:
		return "DECLINED"
	default:
		return "PENDING"
	}
}

func (s *Server) handleEditOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req editOrderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, s.log, err)
		return
	}
	ctx := logging.WithOrderID(r.Context(), id)
	o, err := s.checkout.EditOrder(ctx, sessionFrom(ctx), id, req.PlanModel)
	if err != nil {
		writeError(w, r.WithContext(ctx), s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{
		ID:         o.ID,
		FriendlyID: o.FriendlyID,
		Status:     string(o.Status),
		PlanModel:  o.PlanModelID,
		Price:      o.Price.StringFixed(2),
		Currency:   o.Currency,
	})
}

func (s *Server) handleFinishOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := logging.WithOrderID(r.Context(), id)
	res, err := s.checkout.FinishOrder(ctx, sessionFrom(ctx), id)
	if err != nil {
		writeError(w, r.WithContext(ctx), s.log, err)
		return
	}
	writeJSON(w, http.StatusOK, finishResponse{Action: res.Action, OrderID: res.OrderID})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	code := http.StatusOK
	for name, check := range s.opts.Health {
		if err := check(r.Context()); err != nil {
			status[name] = "down"
			code = http.StatusServiceUnavailable
			logging.With(r.Context(), s.log).Warn().Err(err).Str("dependency", name).Msg("health check failed")
			continue
		}
		status[name] = "ok"
	}
	overall := "ok"
	if code != http.StatusOK {
		overall = "degraded"
	}
	writeJSON(w, code, map[string]any{"status": overall, "checks": status})
}
