package model

import "time"

type MessageSubject string

const (
	SubjectLineReady     MessageSubject = "LINE_READY"
	SubjectLinePending   MessageSubject = "LINE_PENDING"
	SubjectAbandonedCart MessageSubject = "ABANDONED_CART"
	SubjectFeedback      MessageSubject = "FEEDBACK"
	SubjectIncoming      MessageSubject = "INCOMING"
)

type MessageChannel string

const (
	ChannelEmail    MessageChannel = "EMAIL"
	ChannelSMS      MessageChannel = "SMS"
	ChannelWhatsApp MessageChannel = "WHATSAPP"
)

type MessageDirection string

const (
	DirectionOutbound MessageDirection = "OUTBOUND"
	DirectionInbound  MessageDirection = "INBOUND"
)

// Message audits a notification. (OrderID, Subject, Step) is unique for outbound rows,
// which is how jobs send at most once per step.
type Message struct {
	ID        string
	UserID    string
	OrderID   *string
	Subject   MessageSubject
	Channel   MessageChannel
	Direction MessageDirection
	Step      int
	Template  string
	CreatedAt time.Time
}
