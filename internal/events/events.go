// Package events publishes domain events to RabbitMQ.
package events

import (
	"context"
	"time"
)

// Queue names; each topic is a durable queue on the default exchange.
const (
	TopicOobCode           = "identity.oob_code"
	TopicChangeReviewed    = "catalog.change_reviewed"
	TopicPromotionReviewed = "moderator.promotion_reviewed"
)

// Publisher delivers an event to topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

// Nop drops every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, string, any) error { return nil }

// OobCodeIssued carries a one-time code to the mail relay.
type OobCodeIssued struct {
	Kind      string    `json:"kind"`
	Email     string    `json:"email"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChangeReviewed is emitted after a catalog change request leaves PENDING.
type ChangeReviewed struct {
	RequestID  int64     `json:"request_id"`
	ChangeType string    `json:"change_type"`
	Decision   string    `json:"decision"`
	AuthorID   int64     `json:"author_id"`
	ReviewerID int64     `json:"reviewer_id"`
	GameID     int64     `json:"game_id,omitempty"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// PromotionReviewed is emitted after a moderator request leaves PENDING.
type PromotionReviewed struct {
	RequestID  int64     `json:"request_id"`
	UserID     int64     `json:"user_id"`
	Decision   string    `json:"decision"`
	ReviewerID int64     `json:"reviewer_id"`
	ReviewedAt time.Time `json:"reviewed_at"`
}
