package sessions

import (
	"context"

	"github.com/google/uuid"

	"peakpartner/backend/internal/domain"
)

type relationshipReader interface {
	GetRelationship(ctx context.Context, id uuid.UUID) (domain.Relationship, error)
}

// IsEngaged reports whether the relationship is active.
func (s *Service) IsEngaged(ctx context.Context, relationshipID uuid.UUID) (bool, error) {
	rel, err := s.store.GetRelationship(ctx, relationshipID)
	if err != nil {
		return false, translate(err, "relationship not found")
	}
	return rel.IsActive(), nil
}

func (s *Service) ParticipantsOf(ctx context.Context, relationshipID uuid.UUID) (trainerID, clientID uuid.UUID, err error) {
	rel, err := s.store.GetRelationship(ctx, relationshipID)
	if err != nil {
		return uuid.Nil, uuid.Nil, translate(err, "relationship not found")
	}
	return rel.TrainerID, rel.ClientID, nil
}

// engaged loads the relationship and rejects it unless it is active.
func engaged(ctx context.Context, r relationshipReader, relationshipID uuid.UUID) (domain.Relationship, error) {
	rel, err := r.GetRelationship(ctx, relationshipID)
	if err != nil {
		return domain.Relationship{}, translate(err, "relationship not found")
	}
	if !rel.IsActive() {
		return domain.Relationship{}, invalidState("relationship is not active")
	}
	return rel, nil
}
