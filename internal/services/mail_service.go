package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/ibuddy-app/ibuddy-service/internal/authz"
	"github.com/ibuddy-app/ibuddy-service/internal/email"
	"github.com/ibuddy-app/ibuddy-service/internal/events"
	"github.com/ibuddy-app/ibuddy-service/internal/keys"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/validator"
)

// maxParallelSends bounds concurrent personalised sends.
const maxParallelSends = 8

type mailService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	events    events.Publisher
	sender    email.Sender
	assets    AssetService
}

func NewMailService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.Publisher, sender email.Sender, assets AssetService) MailService {
	return &mailService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		events:    publisher,
		sender:    sender,
		assets:    assets,
	}
}

// SendToMentees mails the actor's own mentees. A body without placeholders
// goes out once to every recipient; otherwise each mentee gets a personalised
// copy.
func (s *mailService) SendToMentees(ctx context.Context, actor *models.User, req *SendEmailRequest) (*SendEmailResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	recipients, err := s.resolveRecipients(ctx, actor, req.Recipients)
	if err != nil {
		return nil, err
	}
	body, err := s.resolveBody(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	vars := email.ExtractVariables(body)
	if err := email.CheckVariables(vars); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidVariables, validator.Field("body", "Invalid variables in body", err.Error()))
	}

	base := email.Message{
		ReplyTo:    actor.Email,
		SenderName: actor.FirstName,
		Subject:    req.Subject,
	}

	result := &SendEmailResult{Personalized: len(vars) > 0}
	if !result.Personalized {
		msg := base
		msg.HTMLBody = body
		for _, m := range recipients {
			msg.To = append(msg.To, m.Email)
		}
		if err := s.sender.Send(ctx, msg); err != nil {
			return nil, externalError("send email", err)
		}
		result.Sent = 1
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxParallelSends)
		for _, m := range recipients {
			msg := base
			msg.To = []string{m.Email}
			msg.HTMLBody = email.Resolve(body, email.MenteeVariables(m))
			g.Go(func() error {
				if err := s.sender.Send(gctx, msg); err != nil {
					return fmt.Errorf("send to mentee %s: %w", m.ID, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, externalError("send email", err)
		}
		result.Sent = len(recipients)
	}

	publish(ctx, s.logger, s.events, events.EmailSent, actor, "", map[string]any{
		"recipients":   len(recipients),
		"messages":     result.Sent,
		"personalized": result.Personalized,
		"templateId":   req.TemplateID,
	})
	s.logger.Info("Bulk email sent", "actor_id", actor.ID, "recipients", len(recipients), "messages", result.Sent)
	return result, nil
}

// resolveRecipients maps addresses to mentees, rejecting any address that is
// unknown or belongs to another buddy's mentee.
func (s *mailService) resolveRecipients(ctx context.Context, actor *models.User, addresses []string) ([]*models.Mentee, error) {
	all, err := s.repo.Mentee().ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentees: %w", err)
	}
	byEmail := make(map[string]*models.Mentee, len(all))
	for _, m := range all {
		byEmail[keys.NormalizeEmail(m.Email)] = m
	}

	invalid := func() error {
		return fmt.Errorf("%w: %w", ErrInvalidRecipients, validator.Field("recipients", "Invalid recipients", addresses))
	}
	seen := make(map[string]bool, len(addresses))
	var recipients []*models.Mentee
	for _, addr := range addresses {
		key := keys.NormalizeEmail(addr)
		m, ok := byEmail[key]
		if !ok {
			return nil, invalid()
		}
		if !seen[key] {
			seen[key] = true
			recipients = append(recipients, m)
		}
	}
	if !authz.CanSendMenteeEmail(actor, recipients) {
		return nil, invalid()
	}
	return recipients, nil
}

func (s *mailService) resolveBody(ctx context.Context, actor *models.User, req *SendEmailRequest) (string, error) {
	if req.TemplateID == "" {
		body := email.Sanitize(req.Body)
		if email.IsEmptyHTML(body) {
			return "", validator.Field("body", msgEmptyTemplate, nil)
		}
		return body, nil
	}
	tmpl, err := s.assets.Get(ctx, actor, req.TemplateID)
	if err != nil {
		return "", err
	}
	if tmpl.Type != models.AssetTypeEmailTemplate {
		return "", validator.Field("templateId", "Template is not an e-mail template", req.TemplateID)
	}
	return tmpl.Src, nil
}
