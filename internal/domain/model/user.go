package model

import (
	"strings"
	"time"

	"esim-storefront/internal/domain"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

// User is a shop customer. Customers are keyed by phone number at checkout so a
// returning buyer reuses the same record.
type User struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Role        UserRole
	Locale      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewUser(id, firstName, lastName, email, phone string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, domain.NewValidationError("phoneNumber", "required")
	}
	if strings.TrimSpace(email) == "" {
		return nil, domain.NewValidationError("email", "required")
	}
	now := time.Now()
	return &User{
		ID:          id,
		FirstName:   strings.TrimSpace(firstName),
		LastName:    strings.TrimSpace(lastName),
		Email:       strings.ToLower(strings.TrimSpace(email)),
		PhoneNumber: phone,
		Role:        RoleUser,
		Locale:      "he",
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// NormalizePhone strips formatting characters and keeps a leading '+'.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
