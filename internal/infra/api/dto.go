package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"esim-storefront/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type placeOrderRequest struct {
	FirstName      string           `json:"firstName" validate:"required,max=100"`
	LastName       string           `json:"lastName" validate:"required,max=100"`
	Email          string           `json:"email" validate:"required,email,max=254"`
	PhoneNumber    string           `json:"phoneNumber" validate:"required,min=6,max=20"`
	Price          *decimal.Decimal `json:"price"`
	PlanModel      string           `json:"planModel" validate:"required,max=64"`
	Coupon         string           `json:"coupon" validate:"max=64"`
	RecaptchaToken string           `json:"recaptchaToken" validate:"max=4096"`
	Provider       string           `json:"provider" validate:"omitempty,oneof=creditcard paypal noop"`
	Locale         string           `json:"locale" validate:"omitempty,max=8"`
}

type placeOrderResponse struct {
	OrderID     string `json:"orderId"`
	FriendlyID  int64  `json:"friendlyId"`
	RedirectURL string `json:"redirectUrl"`
}

type payPalCreateRequest struct {
	OrderID string `json:"orderId" validate:"required,max=64"`
}

type payPalCreateResponse struct {
	ID string `json:"id"`
}

type payPalCaptureRequest struct {
	OrderID string `json:"orderID" validate:"required,max=64"`
	PayerID string `json:"payerID" validate:"max=64"`
}

type payPalCaptureResponse struct {
	Status string `json:"status"`
	State  string `json:"state"`
}

type editOrderRequest struct {
	PlanModel string `json:"planModel" validate:"required,max=64"`
}

type orderResponse struct {
	ID         string `json:"id"`
	FriendlyID int64  `json:"friendlyId"`
	Status     string `json:"status"`
	PlanModel  string `json:"planModel"`
	Price      string `json:"price"`
	Currency   string `json:"currency"`
}

type finishResponse struct {
	Action  string `json:"action"`
	OrderID string `json:"orderId"`
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

const maxBody = 64 << 10

// decode reads a JSON body into dst and runs struct validation on it.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("body", "empty request body")
		}
		return domain.NewValidationError("body", "malformed json")
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.ErrInvalidArgument
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[jsonName(fe.Field())] = fe.Tag()
	}
	return &domain.ValidationError{Fields: fields}
}

// jsonName lower-cases the first rune so messages match the request keys.
func jsonName(field string) string {
	switch field {
	case "OrderID":
		return "orderId"
	case "PayerID":
		return "payerID"
	}
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
