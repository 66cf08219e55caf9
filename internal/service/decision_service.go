package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

const decisionNotFound = "Decision not found"

// DecisionAuthorizer resolves a decision the principal is allowed to touch.
type DecisionAuthorizer interface {
	Authorize(ctx context.Context, principalID, decisionID string) (domain.Decision, error)
}

// DecisionService manages decisions scoped to their owner.
type DecisionService struct {
	instrumentation
	decisions repository.DecisionRepository
}

var _ DecisionAuthorizer = (*DecisionService)(nil)

func NewDecisionService(decisions repository.DecisionRepository, logger *zap.Logger) *DecisionService {
	return &DecisionService{instrumentation: newInstrumentation(logger), decisions: decisions}
}

func validateID(id, field string) error {
	if _, err := uuid.Parse(id); err != nil {
		return InvalidRequest("Invalid " + field)
	}
	return nil
}

// Authorize returns the decision when it exists and is owned by
// principalID. Missing and foreign decisions are both reported as 404.
func (s *DecisionService) Authorize(ctx context.Context, principalID, decisionID string) (domain.Decision, error) {
	if err := validateID(decisionID, "decision id"); err != nil {
		return domain.Decision{}, err
	}

	decision, err := s.decisions.GetByID(ctx, decisionID)
	if err != nil {
		return domain.Decision{}, storeError("get decision", err, decisionNotFound)
	}
	if decision.OwnerID != principalID {
		return domain.Decision{}, NotFound(decisionNotFound, nil)
	}
	return decision, nil
}

// Create stores a new active decision owned by the principal.
func (s *DecisionService) Create(ctx context.Context, principal domain.Principal, in CreateDecisionInput) (domain.Decision, error) {
	ctx, span := s.startSpan(ctx, "DecisionService.Create")
	defer span.End()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Decision{}, InvalidRequest("Title is required")
	}

	created, err := s.decisions.Create(ctx, domain.Decision{
		ID:          uuid.NewString(),
		OwnerID:     principal.ID,
		Title:       title,
		Description: in.Description,
		IsActive:    true,
	})
	if err != nil {
		span.RecordError(err)
		return domain.Decision{}, storeError("create decision", err, decisionNotFound)
	}

	s.audit("decision.created", "user_id", principal.ID, "decision_id", created.ID)
	return created, nil
}

// List returns the principal's decisions, newest first.
func (s *DecisionService) List(ctx context.Context, principal domain.Principal) ([]domain.Decision, error) {
	ctx, span := s.startSpan(ctx, "DecisionService.List")
	defer span.End()

	decisions, err := s.decisions.ListByOwner(ctx, principal.ID)
	if err != nil {
		span.RecordError(err)
		return nil, storeError("list decisions", err, decisionNotFound)
	}
	return decisions, nil
}

// Get returns one of the principal's decisions.
func (s *DecisionService) Get(ctx context.Context, principal domain.Principal, id string) (domain.Decision, error) {
	ctx, span := s.startSpan(ctx, "DecisionService.Get")
	defer span.End()

	return s.Authorize(ctx, principal.ID, id)
}

// Update applies patch to one of the principal's decisions.
func (s *DecisionService) Update(ctx context.Context, principal domain.Principal, id string, patch domain.DecisionPatch) (domain.Decision, error) {
	ctx, span := s.startSpan(ctx, "DecisionService.Update")
	defer span.End()

	if err := validateID(id, "decision id"); err != nil {
		return domain.Decision{}, err
	}
	if patch.Empty() {
		return domain.Decision{}, InvalidRequest("No fields to update")
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return domain.Decision{}, InvalidRequest("Title cannot be empty")
		}
		patch.Title = &title
	}

	if _, err := s.Authorize(ctx, principal.ID, id); err != nil {
		return domain.Decision{}, err
	}

	updated, err := s.decisions.Update(ctx, id, principal.ID, patch)
	if err != nil {
		span.RecordError(err)
		return domain.Decision{}, storeError("update decision", err, decisionNotFound)
	}

	s.audit("decision.updated", "user_id", principal.ID, "decision_id", id)
	return updated, nil
}

// Delete removes one of the principal's decisions and its options.
func (s *DecisionService) Delete(ctx context.Context, principal domain.Principal, id string) error {
	ctx, span := s.startSpan(ctx, "DecisionService.Delete")
	defer span.End()

	if _, err := s.Authorize(ctx, principal.ID, id); err != nil {
		return err
	}
	if err := s.decisions.Delete(ctx, id, principal.ID); err != nil {
		span.RecordError(err)
		return storeError("delete decision", err, decisionNotFound)
	}

	s.audit("decision.deleted", "user_id", principal.ID, "decision_id", id)
	return nil
}
