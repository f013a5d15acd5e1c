package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ibuddy-app/ibuddy-service/internal/authz"
	"github.com/ibuddy-app/ibuddy-service/internal/events"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/validator"
)

const (
	exportSheet      = "Mentees"
	msgMenteeEmail   = "A mentee with this email address already exists."
	msgBuddyNotFound = "Buddy does not exist"
)

type menteeService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	events    events.Publisher
	policy    models.TransitionPolicy
}

func NewMenteeService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.Publisher, policy models.TransitionPolicy) MenteeService {
	if policy == nil {
		policy = models.PermissiveTransitions
	}
	return &menteeService{
		repo:      repo,
		logger:    logger,
		validator: validator,
		events:    publisher,
		policy:    policy,
	}
}

func (s *menteeService) List(ctx context.Context, actor *models.User, onlyMine bool) ([]*models.Mentee, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	var (
		mentees []*models.Mentee
		err     error
	)
	if onlyMine || !authz.CanMutateMentee(actor) {
		mentees, err = s.repo.Mentee().ListByBuddy(ctx, actor.ID)
	} else {
		mentees, err = s.repo.Mentee().ListAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list mentees: %w", err)
	}
	return mentees, nil
}

// load returns the mentee when the actor may see it.
func (s *menteeService) load(ctx context.Context, actor *models.User, id, action string) (*models.Mentee, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	mentee, err := s.repo.Mentee().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get mentee: %w", err)
	}
	if mentee == nil {
		return nil, ErrMenteeNotFound
	}
	if !authz.CanViewMentee(actor, mentee) {
		return nil, NewPermissionError(actor.ID, id, "mentee", action, "not assigned to this mentee")
	}
	return mentee, nil
}

func (s *menteeService) Get(ctx context.Context, actor *models.User, id string) (*MenteeDetail, error) {
	mentee, err := s.load(ctx, actor, id, "read")
	if err != nil {
		return nil, err
	}
	buddy, err := s.repo.User().GetByID(ctx, mentee.BuddyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get buddy: %w", err)
	}
	return &MenteeDetail{
		Mentee:      mentee,
		StatusLabel: mentee.Status.HumanReadable(),
		Buddy:       summarize(buddy),
		CanMutate:   authz.CanMutateMentee(actor),
	}, nil
}

func (s *menteeService) checkEmail(ctx context.Context, email string) error {
	unique, err := s.repo.Mentee().IsEmailUnique(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check mentee email: %w", err)
	}
	if !unique {
		return fmt.Errorf("%w: %w", ErrMenteeEmailTaken, validator.Field("email", msgMenteeEmail, email))
	}
	return nil
}

func (s *menteeService) checkBuddy(ctx context.Context, buddyID string) error {
	buddy, err := s.repo.User().GetByID(ctx, buddyID)
	if err != nil {
		return fmt.Errorf("failed to get buddy: %w", err)
	}
	if buddy == nil {
		return fmt.Errorf("%w: %w", ErrBuddyNotFound, validator.Field("buddyId", msgBuddyNotFound, buddyID))
	}
	return nil
}

func (s *menteeService) Create(ctx context.Context, actor *models.User, req *CreateMenteeRequest) (*models.Mentee, error) {
	if !authz.CanMutateMentee(actor) {
		return nil, NewPermissionError(actorID(actor), "", "mentee", "create", "insufficient role permissions")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if err := s.checkEmail(ctx, req.Email); err != nil {
		return nil, err
	}
	if err := s.checkBuddy(ctx, req.BuddyID); err != nil {
		return nil, err
	}
	start, end, err := parseDates(req.AgreementStartDate, req.AgreementEndDate)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Creating mentee", "actor_id", actor.ID, "buddy_id", req.BuddyID)
	mentee, err := s.repo.Mentee().Create(ctx, &models.Mentee{
		BuddyID:            req.BuddyID,
		FirstName:          strings.TrimSpace(req.FirstName),
		LastName:           strings.TrimSpace(req.LastName),
		Email:              req.Email,
		Gender:             models.Gender(req.Gender),
		Degree:             models.Degree(req.Degree),
		CountryCode:        strings.ToUpper(req.CountryCode),
		HomeUniversity:     strings.TrimSpace(req.HomeUniversity),
		HostFaculty:        strings.TrimSpace(req.HostFaculty),
		AgreementStartDate: start,
		AgreementEndDate:   end,
		Status:             models.MenteeStatusAssigned,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mentee: %w", err)
	}

	if notes := strings.TrimSpace(req.Notes); notes != "" {
		if _, err := s.repo.Note().Create(ctx, &models.Note{MenteeID: mentee.ID, AuthorID: actor.ID, Content: notes}); err != nil {
			s.logger.Error("Failed to store initial note", "mentee_id", mentee.ID, "error", err)
		}
	}

	publish(ctx, s.logger, s.events, events.MenteeCreated, actor, mentee.ID, map[string]any{"buddyId": mentee.BuddyID})
	s.logger.Info("Mentee created successfully", "mentee_id", mentee.ID)
	return mentee, nil
}

func (s *menteeService) Update(ctx context.Context, actor *models.User, id string, req *UpdateMenteeRequest) (*models.Mentee, error) {
	if !authz.CanMutateMentee(actor) {
		return nil, NewPermissionError(actorID(actor), id, "mentee", "update", "insufficient role permissions")
	}
	current, err := s.load(ctx, actor, id, "update")
	if err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if (req.AgreementStartDate == nil) != (req.AgreementEndDate == nil) {
		return nil, validator.Field("agreementEndDate", "Agreement start and end date must be changed together", nil)
	}

	patch := repositories.MenteePatch{
		BuddyID:        req.BuddyID,
		FirstName:      trimmed(req.FirstName),
		LastName:       trimmed(req.LastName),
		Email:          trimmed(req.Email),
		HomeUniversity: trimmed(req.HomeUniversity),
		HostFaculty:    trimmed(req.HostFaculty),
	}
	if req.Email != nil && !strings.EqualFold(strings.TrimSpace(*req.Email), current.Email) {
		if err := s.checkEmail(ctx, *req.Email); err != nil {
			return nil, err
		}
	}
	if req.BuddyID != nil && *req.BuddyID != current.BuddyID {
		if err := s.checkBuddy(ctx, *req.BuddyID); err != nil {
			return nil, err
		}
	}
	if req.Gender != nil {
		g := models.Gender(*req.Gender)
		patch.Gender = &g
	}
	if req.Degree != nil {
		d := models.Degree(*req.Degree)
		patch.Degree = &d
	}
	if req.CountryCode != nil {
		c := strings.ToUpper(*req.CountryCode)
		patch.CountryCode = &c
	}
	if req.AgreementStartDate != nil {
		start, end, err := parseDates(*req.AgreementStartDate, *req.AgreementEndDate)
		if err != nil {
			return nil, err
		}
		patch.AgreementStartDate = start
		patch.AgreementEndDate = end
	}

	updated, err := s.repo.Mentee().Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrMenteeNotFound
		}
		return nil, fmt.Errorf("failed to update mentee: %w", err)
	}
	s.logger.Info("Mentee updated", "mentee_id", id, "actor_id", actor.ID)
	return updated, nil
}

func (s *menteeService) UpdateStatus(ctx context.Context, actor *models.User, id string, status models.MenteeStatus) (*models.Mentee, error) {
	mentee, err := s.load(ctx, actor, id, "update_status")
	if err != nil {
		return nil, err
	}
	if !authz.CanUpdateMenteeStatus(actor, mentee) {
		return nil, NewPermissionError(actor.ID, id, "mentee", "update_status", "not assigned to this mentee")
	}
	if err := s.validator.Validate(&UpdateStatusRequest{Status: status}); err != nil {
		return nil, err
	}
	if !s.policy.Allow(mentee.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s under %s policy", ErrInvalidStatusTransition, mentee.Status, status, s.policy.Name())
	}

	updated, err := s.repo.Mentee().UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrMenteeNotFound
		}
		return nil, fmt.Errorf("failed to update mentee status: %w", err)
	}
	publish(ctx, s.logger, s.events, events.MenteeStatusChanged, actor, id, map[string]any{
		"from": mentee.Status,
		"to":   status,
	})
	return updated, nil
}

func (s *menteeService) Delete(ctx context.Context, actor *models.User, id string) error {
	if !authz.CanMutateMentee(actor) {
		return NewPermissionError(actorID(actor), id, "mentee", "delete", "insufficient role permissions")
	}
	if _, err := s.load(ctx, actor, id, "delete"); err != nil {
		return err
	}
	if err := s.repo.Mentee().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete mentee: %w", err)
	}
	publish(ctx, s.logger, s.events, events.MenteeDeleted, actor, id, nil)
	s.logger.Info("Mentee deleted", "mentee_id", id, "actor_id", actor.ID)
	return nil
}

// ===== NOTES =====

func (s *menteeService) ListNotes(ctx context.Context, actor *models.User, menteeID string) ([]*NoteView, error) {
	if _, err := s.load(ctx, actor, menteeID, "read"); err != nil {
		return nil, err
	}
	notes, err := s.repo.Note().ListByMentee(ctx, menteeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	authors := make(map[string]*UserSummary)
	views := make([]*NoteView, 0, len(notes))
	for _, n := range notes {
		author, seen := authors[n.AuthorID]
		if !seen {
			u, err := s.repo.User().GetByID(ctx, n.AuthorID)
			if err != nil {
				return nil, fmt.Errorf("failed to get note author: %w", err)
			}
			author = summarize(u)
			authors[n.AuthorID] = author
		}
		views = append(views, &NoteView{Note: n, Author: author, CanBeMutated: authz.CanMutateNote(actor, n)})
	}
	return views, nil
}

func (s *menteeService) CreateNote(ctx context.Context, actor *models.User, menteeID, content string) (*models.Note, error) {
	mentee, err := s.load(ctx, actor, menteeID, "add_note")
	if err != nil {
		return nil, err
	}
	if !authz.CanAddNote(actor, mentee) {
		return nil, NewPermissionError(actor.ID, menteeID, "note", "create", "not assigned to this mentee")
	}
	if err := s.validator.Validate(&NoteRequest{Content: content}); err != nil {
		return nil, err
	}
	note, err := s.repo.Note().Create(ctx, &models.Note{MenteeID: menteeID, AuthorID: actor.ID, Content: strings.TrimSpace(content)})
	if err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}
	return note, nil
}

func (s *menteeService) loadNote(ctx context.Context, actor *models.User, menteeID, noteID, action string) (*models.Note, error) {
	if _, err := s.load(ctx, actor, menteeID, action); err != nil {
		return nil, err
	}
	note, err := s.repo.Note().Get(ctx, menteeID, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}
	if !authz.CanMutateNote(actor, note) {
		return nil, NewPermissionError(actor.ID, noteID, "note", action, "only the author can change a note")
	}
	return note, nil
}

func (s *menteeService) UpdateNote(ctx context.Context, actor *models.User, menteeID, noteID, content string) (*models.Note, error) {
	if _, err := s.loadNote(ctx, actor, menteeID, noteID, "update"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(&NoteRequest{Content: content}); err != nil {
		return nil, err
	}
	note, err := s.repo.Note().Update(ctx, menteeID, noteID, strings.TrimSpace(content))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to update note: %w", err)
	}
	return note, nil
}

func (s *menteeService) DeleteNote(ctx context.Context, actor *models.User, menteeID, noteID string) error {
	if _, err := s.loadNote(ctx, actor, menteeID, noteID, "delete"); err != nil {
		return err
	}
	if err := s.repo.Note().Delete(ctx, menteeID, noteID); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

// ===== EXPORT =====

var exportHeader = []interface{}{
	"First name", "Last name", "Email", "Gender", "Degree", "Country",
	"Home university", "Host faculty", "Buddy", "Status", "Agreement start", "Agreement end",
}

func (s *menteeService) Export(ctx context.Context, actor *models.User, w io.Writer) error {
	mentees, err := s.List(ctx, actor, false)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return fmt.Errorf("failed to prepare workbook: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	buddies := make(map[string]string)
	for i, m := range mentees {
		name, seen := buddies[m.BuddyID]
		if !seen {
			buddy, err := s.repo.User().GetByID(ctx, m.BuddyID)
			if err != nil {
				return fmt.Errorf("failed to get buddy: %w", err)
			}
			if buddy != nil {
				name = buddy.FullName()
			}
			buddies[m.BuddyID] = name
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			m.FirstName, m.LastName, m.Email, string(m.Gender), string(m.Degree), m.CountryCode,
			m.HomeUniversity, m.HostFaculty, name, m.Status.HumanReadable(),
			formatDate(m.AgreementStartDate), formatDate(m.AgreementEndDate),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	s.logger.Info("Mentees exported", "actor_id", actor.ID, "count", len(mentees))
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(validator.DateLayout)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
