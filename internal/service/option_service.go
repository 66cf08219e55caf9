package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smallbiznis/decisionlog/internal/domain"
	"github.com/smallbiznis/decisionlog/internal/repository"
)

const (
	optionNotFound   = "Option not found"
	optionForbidden  = "Not authorized to modify this option"
	ratingOutOfRange = "Rating must be between 1 and 5"
)

// OptionService manages options. Access is always decided by the parent
// decision.
type OptionService struct {
	instrumentation
	options   repository.OptionRepository
	decisions DecisionAuthorizer
}

func NewOptionService(options repository.OptionRepository, decisions DecisionAuthorizer, logger *zap.Logger) *OptionService {
	return &OptionService{instrumentation: newInstrumentation(logger), options: options, decisions: decisions}
}

// Create adds an option to one of the principal's decisions.
func (s *OptionService) Create(ctx context.Context, principal domain.Principal, in CreateOptionInput) (domain.Option, error) {
	ctx, span := s.startSpan(ctx, "OptionService.Create")
	defer span.End()

	text := strings.TrimSpace(in.OptionText)
	if text == "" {
		return domain.Option{}, InvalidRequest("Option text is required")
	}
	if !domain.ValidRating(in.Rating) {
		return domain.Option{}, InvalidRequest(ratingOutOfRange)
	}
	if _, err := s.decisions.Authorize(ctx, principal.ID, in.DecisionID); err != nil {
		return domain.Option{}, err
	}

	created, err := s.options.Create(ctx, domain.Option{
		ID:         uuid.NewString(),
		DecisionID: in.DecisionID,
		OptionText: text,
		Rating:     in.Rating,
	})
	if err != nil {
		span.RecordError(err)
		return domain.Option{}, storeError("create option", err, optionNotFound)
	}

	s.audit("option.created", "user_id", principal.ID, "decision_id", in.DecisionID, "option_id", created.ID)
	return created, nil
}

// List returns the options of one of the principal's decisions.
func (s *OptionService) List(ctx context.Context, principal domain.Principal, decisionID string) ([]domain.Option, error) {
	ctx, span := s.startSpan(ctx, "OptionService.List")
	defer span.End()

	if _, err := s.decisions.Authorize(ctx, principal.ID, decisionID); err != nil {
		return nil, err
	}
	options, err := s.options.ListByDecision(ctx, decisionID)
	if err != nil {
		span.RecordError(err)
		return nil, storeError("list options", err, optionNotFound)
	}
	return options, nil
}

// Update applies patch to an option whose decision the principal owns.
func (s *OptionService) Update(ctx context.Context, principal domain.Principal, id string, patch domain.OptionPatch) (domain.Option, error) {
	ctx, span := s.startSpan(ctx, "OptionService.Update")
	defer span.End()

	if err := validateID(id, "option id"); err != nil {
		return domain.Option{}, err
	}
	if patch.Empty() {
		return domain.Option{}, InvalidRequest("No fields to update")
	}
	if patch.OptionText != nil {
		text := strings.TrimSpace(*patch.OptionText)
		if text == "" {
			return domain.Option{}, InvalidRequest("Option text cannot be empty")
		}
		patch.OptionText = &text
	}
	if !domain.ValidRating(patch.Rating.Value) {
		return domain.Option{}, InvalidRequest(ratingOutOfRange)
	}

	if _, err := s.authorizeOption(ctx, principal, id); err != nil {
		return domain.Option{}, err
	}

	updated, err := s.options.Update(ctx, id, patch)
	if err != nil {
		span.RecordError(err)
		return domain.Option{}, storeError("update option", err, optionNotFound)
	}

	s.audit("option.updated", "user_id", principal.ID, "option_id", id)
	return updated, nil
}

// Delete removes an option whose decision the principal owns.
func (s *OptionService) Delete(ctx context.Context, principal domain.Principal, id string) error {
	ctx, span := s.startSpan(ctx, "OptionService.Delete")
	defer span.End()

	if err := validateID(id, "option id"); err != nil {
		return err
	}
	if _, err := s.authorizeOption(ctx, principal, id); err != nil {
		return err
	}
	if err := s.options.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return storeError("delete option", err, optionNotFound)
	}

	s.audit("option.deleted", "user_id", principal.ID, "option_id", id)
	return nil
}

// authorizeOption loads the option and checks its parent. A missing option
// is 404; an existing option under someone else's decision is 403.
func (s *OptionService) authorizeOption(ctx context.Context, principal domain.Principal, id string) (domain.Option, error) {
	option, err := s.options.GetByID(ctx, id)
	if err != nil {
		return domain.Option{}, storeError("get option", err, optionNotFound)
	}
	if _, err := s.decisions.Authorize(ctx, principal.ID, option.DecisionID); err != nil {
		if IsKind(err, KindNotFound) {
			return domain.Option{}, Forbidden(optionForbidden)
		}
		return domain.Option{}, err
	}
	return option, nil
}
