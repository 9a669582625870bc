package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"esim-storefront/internal/domain"
	"esim-storefront/internal/infra/logging"

	"github.com/rs/zerolog"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status and a public error code.
func statusFor(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, domain.ErrCouponUnavailable):
		return http.StatusUnprocessableEntity, "coupon_unavailable"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrVerification):
		return http.StatusForbidden, "Verification"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidStateTransition), errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusInternalServerError, "Configuration"
	case errors.Is(err, domain.ErrGateway), errors.Is(err, domain.ErrProvisioning):
		return http.StatusBadGateway, "Order"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError is the single place domain errors become HTTP responses. Internal detail is logged, not returned.
func writeError(w http.ResponseWriter, r *http.Request, logger *zerolog.Logger, err error) {
	code, public := statusFor(err)
	body := errorBody{Error: public}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	l := logging.With(r.Context(), logger)
	if code >= http.StatusInternalServerError {
		l.Error().Err(err).Int("status", code).Msg("request failed")
	} else {
		l.Info().Err(err).Int("status", code).Msg("request rejected")
	}
	writeJSON(w, code, body)
}

// redirectError sends a browser to the storefront error page with the coarse error code.
func (s *Server) redirectError(w http.ResponseWriter, r *http.Request, err error) {
	logging.With(r.Context(), s.log).Error().Err(err).Msg("redirecting to error page")
	http.Redirect(w, r, s.page(s.pages.Error, "error", domain.Code(err)), http.StatusSeeOther)
}

func (s *Server) page(path, key, value string) string {
	target := strings.TrimRight(s.pages.BaseURL, "/") + path
	if key == "" {
		return target
	}
	return target + "?" + url.Values{key: {value}}.Encode()
}

func itoa(n int) string { return strconv.Itoa(n) }
