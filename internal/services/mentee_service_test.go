package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ibuddy-app/ibuddy-service/internal/events"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
)

func TestMenteeCreate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	mentees := env.manager.Mentee()

	req := menteeRequest(env.buddy.ID, "maria@example.com")
	req.Notes = "Arrives by train"
	created, err := mentees.Create(ctx, env.hr, req)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Status != models.MenteeStatusAssigned || created.CountryCode != "ES" {
		t.Errorf("Create() = %+v", created)
	}
	notes, err := mentees.ListNotes(ctx, env.hr, created.ID)
	if err != nil || len(notes) != 1 || notes[0].Author.ID != env.hr.ID {
		t.Errorf("initial note = %v, %v", notes, err)
	}
	if got := env.events.EventsOfType(events.MenteeCreated); len(got) != 1 || got[0].Subject != created.ID {
		t.Errorf("mentee.created events = %+v", got)
	}

	dup := menteeRequest(env.buddy.ID, "MARIA@example.com")
	_, err = mentees.Create(ctx, env.hr, dup)
	if !errors.Is(err, ErrMenteeEmailTaken) || fieldMessage(t, err, "email") != msgMenteeEmail {
		t.Errorf("duplicate email error = %v", err)
	}

	_, err = mentees.Create(ctx, env.hr, menteeRequest("no-such-user", "new@example.com"))
	if !errors.Is(err, ErrBuddyNotFound) || fieldMessage(t, err, "buddyId") != msgBuddyNotFound {
		t.Errorf("missing buddy error = %v", err)
	}

	past := menteeRequest(env.buddy.ID, "late@example.com")
	past.AgreementEndDate = "2000-01-01"
	_, err = mentees.Create(ctx, env.hr, past)
	if msg := fieldMessage(t, err, "agreementEndDate"); msg != "End date must be in the future and after the start date" {
		t.Errorf("past end date message = %q", msg)
	}

	_, err = mentees.Create(ctx, env.buddy, menteeRequest(env.buddy.ID, "self@example.com"))
	assertPermissionDenied(t, err)
}

func TestMenteeVisibility(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	mentees := env.manager.Mentee()
	mine := env.seedMentee(t, env.buddy, "mine@example.com")
	env.seedMentee(t, env.otherBuddy, "theirs@example.com")

	tests := []struct {
		name     string
		actor    *models.User
		onlyMine bool
		want     int
	}{
		{name: "buddy sees own", actor: env.buddy, want: 1},
		{name: "buddy with flag", actor: env.buddy, onlyMine: true, want: 1},
		{name: "hr sees all", actor: env.hr, want: 2},
		{name: "hr only mine", actor: env.hr, onlyMine: true, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := mentees.List(ctx, tt.actor, tt.onlyMine)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List() returned %d mentees, want %d", len(got), tt.want)
			}
		})
	}

	detail, err := mentees.Get(ctx, env.buddy, mine.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if detail.Buddy == nil || detail.Buddy.ID != env.buddy.ID || detail.CanMutate || detail.StatusLabel != "Assigned" {
		t.Errorf("Get() = %+v", detail)
	}
	_, err = mentees.Get(ctx, env.otherBuddy, mine.ID)
	assertPermissionDenied(t, err)
	if _, err := mentees.Get(ctx, env.hr, "missing"); !errors.Is(err, ErrMenteeNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}
}

func TestMenteeUpdate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	mentees := env.manager.Mentee()
	m := env.seedMentee(t, env.buddy, "maria@example.com")
	env.seedMentee(t, env.buddy, "taken@example.com")

	university := "  Universidad de Granada "
	updated, err := mentees.Update(ctx, env.hr, m.ID, &UpdateMenteeRequest{HomeUniversity: &university, BuddyID: &env.otherBuddy.ID})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.HomeUniversity != "Universidad de Granada" || updated.BuddyID != env.otherBuddy.ID || updated.FirstName != "Maria" {
		t.Errorf("Update() = %+v", updated)
	}

	taken := "TAKEN@example.com"
	if _, err := mentees.Update(ctx, env.hr, m.ID, &UpdateMenteeRequest{Email: &taken}); !errors.Is(err, ErrMenteeEmailTaken) {
		t.Errorf("Update(taken email) error = %v", err)
	}
	same := "Maria@Example.com"
	if _, err := mentees.Update(ctx, env.hr, m.ID, &UpdateMenteeRequest{Email: &same}); err != nil {
		t.Errorf("Update(same email) error = %v", err)
	}

	start := "2099-01-01"
	if _, err := mentees.Update(ctx, env.hr, m.ID, &UpdateMenteeRequest{AgreementStartDate: &start}); fieldMessage(t, err, "agreementEndDate") == "" {
		t.Errorf("Update(start only) error = %v", err)
	}

	_, err = mentees.Update(ctx, env.otherBuddy, m.ID, &UpdateMenteeRequest{HomeUniversity: &university})
	assertPermissionDenied(t, err)
}

func TestMenteeStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("permissive", func(t *testing.T) {
		env := newTestEnv(t, nil)
		m := env.seedMentee(t, env.buddy, "maria@example.com")
		got, err := env.manager.Mentee().UpdateStatus(ctx, env.buddy, m.ID, models.MenteeStatusServed)
		if err != nil || got.Status != models.MenteeStatusServed {
			t.Fatalf("UpdateStatus() = %v, %v", got, err)
		}
		evs := env.events.EventsOfType(events.MenteeStatusChanged)
		if len(evs) != 1 || evs[0].ActorID != env.buddy.ID {
			t.Errorf("status events = %+v", evs)
		}
		_, err = env.manager.Mentee().UpdateStatus(ctx, env.otherBuddy, m.ID, models.MenteeStatusMet)
		assertPermissionDenied(t, err)
		_, err = env.manager.Mentee().UpdateStatus(ctx, env.buddy, m.ID, models.MenteeStatus("lost"))
		if fieldMessage(t, err, "status") == "" {
			t.Errorf("UpdateStatus(unknown) error = %v", err)
		}
	})

	t.Run("strict", func(t *testing.T) {
		env := newTestEnv(t, models.StrictTransitions)
		m := env.seedMentee(t, env.buddy, "maria@example.com")
		if _, err := env.manager.Mentee().UpdateStatus(ctx, env.buddy, m.ID, models.MenteeStatusMet); !errors.Is(err, ErrInvalidStatusTransition) {
			t.Errorf("UpdateStatus(assigned to met) error = %v", err)
		}
		if _, err := env.manager.Mentee().UpdateStatus(ctx, env.buddy, m.ID, models.MenteeStatusContacted); err != nil {
			t.Errorf("UpdateStatus(assigned to contacted) error = %v", err)
		}
	})
}

func TestMenteeDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	mentees := env.manager.Mentee()
	m := env.seedMentee(t, env.buddy, "maria@example.com")
	if _, err := mentees.CreateNote(ctx, env.buddy, m.ID, "First call done"); err != nil {
		t.Fatal(err)
	}

	assertPermissionDenied(t, mentees.Delete(ctx, env.buddy, m.ID))
	if err := mentees.Delete(ctx, env.hr, m.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := mentees.Get(ctx, env.hr, m.ID); !errors.Is(err, ErrMenteeNotFound) {
		t.Errorf("Get(deleted) error = %v", err)
	}
	if notes, _ := env.repo.Note().ListByMentee(ctx, m.ID); len(notes) != 0 {
		t.Errorf("notes left after delete: %d", len(notes))
	}
	if own, _ := mentees.List(ctx, env.buddy, true); len(own) != 0 {
		t.Errorf("buddy still lists %d mentees after delete", len(own))
	}
	if len(env.events.EventsOfType(events.MenteeDeleted)) != 1 {
		t.Error("mentee.deleted not published")
	}
}

func TestMenteeNotes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	mentees := env.manager.Mentee()
	m := env.seedMentee(t, env.buddy, "maria@example.com")

	byBuddy, err := mentees.CreateNote(ctx, env.buddy, m.ID, "Picked up at the station")
	if err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	if _, err := mentees.CreateNote(ctx, env.hr, m.ID, "Documents checked"); err != nil {
		t.Fatalf("CreateNote(hr) error = %v", err)
	}
	_, err = mentees.CreateNote(ctx, env.otherBuddy, m.ID, "Not mine")
	assertPermissionDenied(t, err)
	if _, err := mentees.CreateNote(ctx, env.buddy, m.ID, ""); fieldMessage(t, err, "content") == "" {
		t.Errorf("CreateNote(empty) error = %v", err)
	}

	views, err := mentees.ListNotes(ctx, env.buddy, m.ID)
	if err != nil || len(views) != 2 {
		t.Fatalf("ListNotes() = %v, %v", views, err)
	}
	for _, v := range views {
		if want := v.AuthorID == env.buddy.ID; v.CanBeMutated != want {
			t.Errorf("note by %s CanBeMutated = %v, want %v", v.AuthorID, v.CanBeMutated, want)
		}
	}

	_, err = mentees.UpdateNote(ctx, env.hr, m.ID, byBuddy.ID, "Edited by hr")
	assertPermissionDenied(t, err)
	updated, err := mentees.UpdateNote(ctx, env.admin, m.ID, byBuddy.ID, "Edited by admin")
	if err != nil || updated.Content != "Edited by admin" {
		t.Errorf("UpdateNote(admin) = %v, %v", updated, err)
	}
	if err := mentees.DeleteNote(ctx, env.buddy, m.ID, "missing"); !errors.Is(err, ErrNoteNotFound) {
		t.Errorf("DeleteNote(missing) error = %v", err)
	}
	if err := mentees.DeleteNote(ctx, env.buddy, m.ID, byBuddy.ID); err != nil {
		t.Errorf("DeleteNote() error = %v", err)
	}
}

func TestMenteeExport(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	env.seedMentee(t, env.buddy, "maria@example.com")
	env.seedMentee(t, env.otherBuddy, "lena@example.com")

	var buf bytes.Buffer
	if err := env.manager.Mentee().Export(ctx, env.buddy, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header plus one mentee", len(rows))
	}
	row := rows[1]
	if row[2] != "maria@example.com" || row[8] != "Bea Tester" || row[9] != "Assigned" || row[11] != "2099-06-30" {
		t.Errorf("row = %v", row)
	}
}
