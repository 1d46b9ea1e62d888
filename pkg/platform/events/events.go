// Package events defines the domain event envelope published to downstream
// consumers and the fire-and-forget publisher that delivers it.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"landadmin/pkg/requestcontext"
)

// Type names an event on the wire.
type Type string

const (
	TransferInitiated        Type = "transfer.initiated"
	TransferApproved         Type = "transfer.approved"
	TransferCompleted        Type = "transfer.completed"
	TransferRejected         Type = "transfer.rejected"
	TransferCancelled        Type = "transfer.cancelled"
	LandStatusChanged        Type = "land.status.changed"
	LandOwnershipTransferred Type = "land.ownership.transferred"
)

const (
	metadataSource  = "land-admin"
	metadataVersion = "1.0"
)

// AggregateType returns the aggregate family of t, used for outbox rows.
func (t Type) AggregateType() string {
	switch t {
	case LandStatusChanged, LandOwnershipTransferred:
		return "land_record"
	default:
		return "land_transfer"
	}
}

// Metadata carries request correlation fields.
type Metadata struct {
	Source    string `json:"source"`
	Version   string `json:"version"`
	RequestID string `json:"requestId,omitempty"`
	ActorID   string `json:"actorId,omitempty"`
	ClientIP  string `json:"clientIp,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Event is the envelope every sink receives.
type Event struct {
	ID          string         `json:"id"`
	Type        Type           `json:"type"`
	AggregateID string         `json:"aggregateId"`
	Timestamp   time.Time      `json:"timestamp"`
	Payload     map[string]any `json:"payload"`
	Metadata    Metadata       `json:"metadata"`
}

// New builds an event stamped with the request metadata found in ctx.
func New(ctx context.Context, typ Type, aggregateID string, payload map[string]any) Event {
	md := Metadata{
		Source:    metadataSource,
		Version:   metadataVersion,
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}
	if actor := requestcontext.ActorFrom(ctx); !actor.IsZero() {
		md.ActorID = actor.UserID.String()
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{
		ID:          uuid.NewString(),
		Type:        typ,
		AggregateID: aggregateID,
		Timestamp:   requestcontext.Now(ctx),
		Payload:     payload,
		Metadata:    md,
	}
}
