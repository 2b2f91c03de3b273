package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RelationshipStatus string

const (
	RelationshipStatusPending   RelationshipStatus = "pending"
	RelationshipStatusActive    RelationshipStatus = "active"
	RelationshipStatusDeclined  RelationshipStatus = "declined"
	RelationshipStatusCancelled RelationshipStatus = "cancelled"
)

func (s RelationshipStatus) Valid() bool {
	switch s {
	case RelationshipStatusPending, RelationshipStatusActive, RelationshipStatusDeclined, RelationshipStatusCancelled:
		return true
	}
	return false
}

// Relationship links one trainer with one client. It is owned by the
// connections feature; the session engine only reads it.
type Relationship struct {
	bun.BaseModel `bun:"table:connections,alias:c"`

	ID        uuid.UUID          `bun:"id,pk,type:uuid"`
	TrainerID uuid.UUID          `bun:"trainer_id,notnull,type:uuid"`
	ClientID  uuid.UUID          `bun:"client_id,notnull,type:uuid"`
	Status    RelationshipStatus `bun:"status,notnull"`
	CreatedAt time.Time          `bun:"created_at,notnull"`
	UpdatedAt time.Time          `bun:"updated_at,notnull"`
}

func (r Relationship) IsActive() bool {
	return r.Status == RelationshipStatusActive
}

// RoleOf reports which side id is on, if any.
func (r Relationship) RoleOf(id uuid.UUID) (Role, bool) {
	switch id {
	case r.TrainerID:
		return RoleTrainer, true
	case r.ClientID:
		return RoleClient, true
	}
	return "", false
}
