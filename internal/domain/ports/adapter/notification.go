package adapter

import "context"

// Email is a rendered transactional email.
type Email struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
}

type Mailer interface {
	Send(ctx context.Context, e Email) error
}

type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, toPhone, body string) error
}

// CaptchaVerifier returns the provider score in [0,1].
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (float64, error)
}

// OpsAlerter posts operational alerts to the on-call channel.
type OpsAlerter interface {
	Alert(ctx context.Context, text string) error
}
