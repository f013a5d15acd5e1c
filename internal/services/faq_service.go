package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ibuddy-app/ibuddy-service/internal/authz"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/validator"
)

type faqService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewFAQService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) FAQService {
	return &faqService{repo: repo, logger: logger, validator: validator}
}

func (s *faqService) List(ctx context.Context, actor *models.User) ([]*FAQView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	faqs, err := s.repo.FAQ().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list faqs: %w", err)
	}
	views := make([]*FAQView, 0, len(faqs))
	for _, f := range faqs {
		views = append(views, &FAQView{FAQ: f, CanMutate: authz.CanMutateFAQ(actor, f)})
	}
	return views, nil
}

func (s *faqService) Get(ctx context.Context, actor *models.User, id string) (*FAQView, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	faq, err := s.repo.FAQ().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get faq: %w", err)
	}
	if faq == nil {
		return nil, ErrFAQNotFound
	}
	return &FAQView{FAQ: faq, CanMutate: authz.CanMutateFAQ(actor, faq)}, nil
}

func (s *faqService) Create(ctx context.Context, actor *models.User, req *FAQRequest) (*models.FAQ, error) {
	if !authz.CanCreateFAQ(actor) {
		return nil, NewPermissionError(actorID(actor), "", "faq", "create", "insufficient role permissions")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	faq, err := s.repo.FAQ().Create(ctx, &models.FAQ{
		AuthorID: actor.ID,
		Question: strings.TrimSpace(req.Question),
		Answer:   strings.TrimSpace(req.Answer),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create faq: %w", err)
	}
	s.logger.Info("FAQ created", "faq_id", faq.ID, "author_id", actor.ID)
	return faq, nil
}

func (s *faqService) Update(ctx context.Context, actor *models.User, id string, req *FAQRequest) (*models.FAQ, error) {
	view, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !view.CanMutate {
		return nil, NewPermissionError(actor.ID, id, "faq", "update", "insufficient role permissions")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	faq, err := s.repo.FAQ().Update(ctx, id, strings.TrimSpace(req.Question), strings.TrimSpace(req.Answer))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrFAQNotFound
		}
		return nil, fmt.Errorf("failed to update faq: %w", err)
	}
	return faq, nil
}

func (s *faqService) Delete(ctx context.Context, actor *models.User, id string) error {
	view, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if !view.CanMutate {
		return NewPermissionError(actor.ID, id, "faq", "delete", "insufficient role permissions")
	}
	if err := s.repo.FAQ().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete faq: %w", err)
	}
	s.logger.Info("FAQ deleted", "faq_id", id, "actor_id", actor.ID)
	return nil
}
