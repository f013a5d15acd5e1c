package kv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/ibuddy-app/ibuddy-service/internal/keys"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/store"
	"github.com/ibuddy-app/ibuddy-service/internal/store/redisstore"
)

// faultyTable fails selected operations of the wrapped table.
type faultyTable struct {
	store.Table
	failCreate bool
	failDelete func(key store.Key) bool
}

var errInjected = errors.New("injected failure")

func (f *faultyTable) Create(ctx context.Context, key store.Key, item store.Item) error {
	if f.failCreate {
		return errInjected
	}
	return f.Table.Create(ctx, key, item)
}

func (f *faultyTable) Delete(ctx context.Context, key store.Key) error {
	if f.failDelete != nil && f.failDelete(key) {
		return errInjected
	}
	return f.Table.Delete(ctx, key)
}

type fakeFiles struct {
	mu      sync.Mutex
	removed []string
	err     error
}

func (f *fakeFiles) Remove(_ context.Context, host models.AssetHost, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, string(host)+":"+key)
	return f.err
}

type testEnv struct {
	repo   repositories.Repository
	files  *fakeFiles
	tables map[string]store.Table
}

func newTestEnv(t *testing.T, wrap func(store.Schema, store.Table) store.Table) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	env := &testEnv{files: &fakeFiles{}, tables: map[string]store.Table{}}
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var seq int

	repo, err := NewRepository(context.Background(), RepositoryConfig{
		NewTable: func(schema store.Schema) (store.Table, error) {
			var tbl store.Table = redisstore.New(client, "test", schema)
			if wrap != nil {
				tbl = wrap(schema, tbl)
			}
			env.tables[schema.Name] = tbl
			return tbl, nil
		},
		Files:      env.files,
		BcryptCost: bcrypt.MinCost,
		Now: func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		},
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		},
	})
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	env.repo = repo
	return env
}

func newBuddy(email string) *models.User {
	end := time.Now().AddDate(1, 0, 0)
	return &models.User{Email: email, FirstName: "Bud", LastName: "Dy", Role: models.RoleBuddy, AgreementEndDate: &end}
}

func TestUserCreateAndLookup(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	users := env.repo.User()

	created, err := users.Create(ctx, newBuddy("Jane.Doe@Example.com"), "Str0ng!pass")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != keys.UserID("jane.doe@example.com") {
		t.Errorf("ID = %q, want derived id", created.ID)
	}
	if created.SearchableEmail != "jane.doe@example.com" {
		t.Errorf("SearchableEmail = %q", created.SearchableEmail)
	}

	got, err := users.GetByEmail(ctx, " JANE.DOE@example.com")
	if err != nil || got == nil || got.ID != created.ID {
		t.Fatalf("GetByEmail() = %v, %v", got, err)
	}

	missing, err := users.GetByID(ctx, "nobody")
	if err != nil || missing != nil {
		t.Errorf("GetByID(missing) = %v, %v; want nil, nil", missing, err)
	}

	if _, err := users.Create(ctx, newBuddy("jane.doe@example.com"), "Str0ng!pass"); !errors.Is(err, repositories.ErrAlreadyExists) {
		t.Errorf("duplicate Create() error = %v, want ErrAlreadyExists", err)
	}
}

func TestVerifyLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	users := env.repo.User()
	if _, err := users.Create(ctx, newBuddy("jane@example.com"), "Str0ng!pass"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		email    string
		password string
		wantUser bool
	}{
		{"correct", "jane@example.com", "Str0ng!pass", true},
		{"case insensitive email", "JANE@example.com", "Str0ng!pass", true},
		{"wrong password", "jane@example.com", "Wr0ng!pass", false},
		{"unknown user", "john@example.com", "Str0ng!pass", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := users.VerifyLogin(ctx, tt.email, tt.password)
			if err != nil {
				t.Fatalf("VerifyLogin() error = %v", err)
			}
			if (u != nil) != tt.wantUser {
				t.Errorf("VerifyLogin() = %v, want user %v", u, tt.wantUser)
			}
		})
	}

	if err := users.ChangePassword(ctx, keys.UserID("jane@example.com"), "N3w!password"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if u, _ := users.VerifyLogin(ctx, "jane@example.com", "N3w!password"); u == nil {
		t.Error("new password rejected")
	}
}

func TestUserCreateRollsBackPassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, func(schema store.Schema, tbl store.Table) store.Table {
		if schema.Name == UsersSchema.Name {
			return &faultyTable{Table: tbl, failCreate: true}
		}
		return tbl
	})

	_, err := env.repo.User().Create(ctx, newBuddy("jane@example.com"), "Str0ng!pass")
	var serr *SagaError
	if !errors.As(err, &serr) {
		t.Fatalf("Create() error = %v, want SagaError", err)
	}
	if serr.Failed != "user" || len(serr.Completed) != 1 || serr.Completed[0] != "password" {
		t.Errorf("SagaError = %+v", serr)
	}
	if !errors.Is(err, errInjected) {
		t.Errorf("cause not preserved: %v", err)
	}

	id := keys.UserID("jane@example.com")
	if _, err := env.tables[PasswordsSchema.Name].Get(ctx, rootKey(keys.Password(id))); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("password record survived rollback: %v", err)
	}
}

func TestUserDeleteRemovesPassword(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	users := env.repo.User()
	if _, err := users.Create(ctx, newBuddy("jane@example.com"), "Str0ng!pass"); err != nil {
		t.Fatal(err)
	}
	if err := users.DeleteByEmail(ctx, "Jane@example.com"); err != nil {
		t.Fatalf("DeleteByEmail() error = %v", err)
	}
	if u, _ := users.GetByEmail(ctx, "jane@example.com"); u != nil {
		t.Error("user still present")
	}
	if u, _ := users.VerifyLogin(ctx, "jane@example.com", "Str0ng!pass"); u != nil {
		t.Error("deleted user can still sign in")
	}
}

func TestListActiveBuddies(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	users := env.repo.User()

	past := time.Now().AddDate(0, -1, 0)
	expired := newBuddy("old@example.com")
	expired.AgreementEndDate = &past
	hr := newBuddy("hr@example.com")
	hr.Role = models.RoleHR
	noAgreement := newBuddy("none@example.com")
	noAgreement.AgreementEndDate = nil

	for _, u := range []*models.User{newBuddy("active@example.com"), expired, hr, noAgreement} {
		if _, err := users.Create(ctx, u, "Str0ng!pass"); err != nil {
			t.Fatal(err)
		}
	}

	buddies, err := users.ListActiveBuddies(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, b := range buddies {
		got = append(got, b.SearchableEmail)
	}
	if len(got) != 2 || !slices.Contains(got, "active@example.com") || !slices.Contains(got, "hr@example.com") {
		t.Errorf("ListActiveBuddies() = %v, want active@example.com and hr@example.com", got)
	}

	all, err := users.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("List() returned %d users", len(all))
	}
}

func createMenteeWithNotes(t *testing.T, env *testEnv, buddyID string, notes int) *models.Mentee {
	t.Helper()
	ctx := context.Background()
	m, err := env.repo.Mentee().Create(ctx, &models.Mentee{
		BuddyID:   buddyID,
		FirstName: "Mia",
		LastName:  "Tee",
		Email:     buddyID + "-mentee@example.com",
	})
	if err != nil {
		t.Fatalf("Create mentee: %v", err)
	}
	for i := 0; i < notes; i++ {
		if _, err := env.repo.Note().Create(ctx, &models.Note{MenteeID: m.ID, AuthorID: buddyID, Content: fmt.Sprintf("note %d", i)}); err != nil {
			t.Fatalf("Create note: %v", err)
		}
	}
	return m
}

func TestMenteeCreateDefaults(t *testing.T) {
	env := newTestEnv(t, nil)
	m := createMenteeWithNotes(t, env, "b1", 0)
	if m.Status != models.MenteeStatusAssigned {
		t.Errorf("Status = %q, want assigned", m.Status)
	}
	if m.SearchableEmail != "b1-mentee@example.com" {
		t.Errorf("SearchableEmail = %q", m.SearchableEmail)
	}
	unique, err := env.repo.Mentee().IsEmailUnique(context.Background(), "B1-Mentee@example.com")
	if err != nil || unique {
		t.Errorf("IsEmailUnique() = %v, %v; want false", unique, err)
	}
}

func TestMenteeDeleteCascadesToNotes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	doomed := createMenteeWithNotes(t, env, "b1", 3)
	kept := createMenteeWithNotes(t, env, "b2", 2)

	if err := env.repo.Mentee().Delete(ctx, doomed.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if m, _ := env.repo.Mentee().GetByID(ctx, doomed.ID); m != nil {
		t.Error("mentee still present")
	}
	left, err := env.tables[MenteesSchema.Name].Query(ctx, keys.Mentee(doomed.ID).String(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("orphaned items after delete: %v", left)
	}
	byBuddy, err := env.repo.Mentee().ListByBuddy(ctx, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if len(byBuddy) != 0 {
		t.Errorf("ListByBuddy() after delete = %v, want empty", byBuddy)
	}

	notes, err := env.repo.Note().ListByMentee(ctx, kept.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Errorf("unrelated notes affected: %d left", len(notes))
	}
}

func TestMenteeDeleteKeepsRootWhenNoteDeleteFails(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, func(schema store.Schema, tbl store.Table) store.Table {
		if schema.Name != MenteesSchema.Name {
			return tbl
		}
		return &faultyTable{Table: tbl, failDelete: func(k store.Key) bool { return k.SK == "Note#id-002" }}
	})
	m := createMenteeWithNotes(t, env, "b1", 2)

	err := env.repo.Mentee().Delete(ctx, m.ID)
	if !errors.Is(err, errInjected) {
		t.Fatalf("Delete() error = %v, want injected failure", err)
	}
	if got, _ := env.repo.Mentee().GetByID(ctx, m.ID); got == nil {
		t.Error("mentee removed although a note survived")
	}
}

func TestNotesNewestFirst(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	m := createMenteeWithNotes(t, env, "b1", 3)

	notes, err := env.repo.Note().ListByMentee(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 3 || notes[0].Content != "note 2" || notes[2].Content != "note 0" {
		t.Errorf("ListByMentee() order = %v", notes)
	}

	updated, err := env.repo.Note().Update(ctx, m.ID, notes[0].ID, "edited")
	if err != nil || updated.Content != "edited" {
		t.Fatalf("Update() = %v, %v", updated, err)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Error("updatedAt not refreshed")
	}
}

func TestMenteeUpdateMovesBuddyIndex(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	m := createMenteeWithNotes(t, env, "b1", 1)

	newBuddy := "b2"
	updated, err := env.repo.Mentee().Update(ctx, m.ID, repositories.MenteePatch{BuddyID: &newBuddy})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.FirstName != "Mia" || updated.BuddyID != "b2" {
		t.Errorf("partial update lost fields: %+v", updated)
	}

	if n, _ := env.repo.Mentee().CountByBuddy(ctx, "b1"); n != 0 {
		t.Errorf("CountByBuddy(b1) = %d", n)
	}
	list, err := env.repo.Mentee().ListByBuddy(ctx, "b2")
	if err != nil || len(list) != 1 {
		t.Errorf("ListByBuddy(b2) = %v, %v", list, err)
	}

	all, err := env.repo.Mentee().ListAll(ctx)
	if err != nil || len(all) != 1 {
		t.Errorf("ListAll() = %v, %v; notes must not be listed as mentees", all, err)
	}

	status, err := env.repo.Mentee().UpdateStatus(ctx, m.ID, models.MenteeStatusMet)
	if err != nil || status.Status != models.MenteeStatusMet {
		t.Errorf("UpdateStatus() = %v, %v", status, err)
	}

	if _, err := env.repo.Mentee().UpdateStatus(ctx, "ghost", models.MenteeStatusMet); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("UpdateStatus(missing) error = %v, want ErrNotFound", err)
	}
}

func TestAssetNameUniqueness(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	assets := env.repo.Asset()

	a, err := assets.Create(ctx, &models.Asset{OwnerID: "u1", Name: " Welcome Guide ", Type: models.AssetTypeEmailTemplate, Src: "<p>Hi</p>"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Name != "Welcome Guide" || a.SearchableName != "welcome guide" {
		t.Errorf("Create() = %+v", a)
	}

	for _, name := range []string{"welcome guide", "WELCOME GUIDE  "} {
		if unique, err := assets.IsNameUnique(ctx, name); err != nil || unique {
			t.Errorf("IsNameUnique(%q) = %v, %v; want false", name, unique, err)
		}
	}

	renamed := "Arrival Checklist"
	if _, err := assets.Update(ctx, a.ID, repositories.AssetPatch{Name: &renamed}); err != nil {
		t.Fatal(err)
	}
	if unique, _ := assets.IsNameUnique(ctx, "welcome guide"); !unique {
		t.Error("old name still reserved after rename")
	}
	if unique, _ := assets.IsNameUnique(ctx, "arrival checklist"); unique {
		t.Error("new name not reserved after rename")
	}
	got, err := assets.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != renamed || got.SearchableName != "arrival checklist" {
		t.Errorf("GetByID() after rename = %q / %q", got.Name, got.SearchableName)
	}
}

func TestAssetListing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	assets := env.repo.Asset()

	mk := func(owner, name string, typ models.AssetType, shared ...string) {
		t.Helper()
		if _, err := assets.Create(ctx, &models.Asset{OwnerID: owner, Name: name, Type: typ, SharedUsers: shared}); err != nil {
			t.Fatal(err)
		}
	}
	mk("u1", "Mine", models.AssetTypeImage)
	mk("u2", "Shared", models.AssetTypeDocument, "u1")
	mk("u2", "Private", models.AssetTypeEmailTemplate)

	accessible, err := assets.ListAccessible(ctx, "u1", nil)
	if err != nil || len(accessible) != 2 {
		t.Fatalf("ListAccessible() = %v, %v", accessible, err)
	}

	docs := models.AssetTypeDocument
	onlyDocs, err := assets.ListAccessible(ctx, "u1", &docs)
	if err != nil || len(onlyDocs) != 1 || onlyDocs[0].Name != "Shared" {
		t.Errorf("ListAccessible(document) = %v, %v", onlyDocs, err)
	}

	owned, err := assets.ListByOwner(ctx, "u2")
	if err != nil || len(owned) != 2 {
		t.Errorf("ListByOwner() = %v, %v", owned, err)
	}

	all, err := assets.ListAll(ctx, nil)
	if err != nil || len(all) != 3 {
		t.Errorf("ListAll() = %v, %v", all, err)
	}
}

func TestAssetDeleteRemovesObject(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	assets := env.repo.Asset()

	file, err := assets.Create(ctx, &models.Asset{OwnerID: "u1", Name: "Map", Type: models.AssetTypeImage, Host: models.AssetHostS3, Src: "123-map.png"})
	if err != nil {
		t.Fatal(err)
	}
	tpl, err := assets.Create(ctx, &models.Asset{OwnerID: "u1", Name: "Hello", Type: models.AssetTypeEmailTemplate, Src: "<p>Hi</p>"})
	if err != nil {
		t.Fatal(err)
	}

	env.files.err = errors.New("bucket unavailable")
	if err := assets.Delete(ctx, file.ID); err != nil {
		t.Fatalf("Delete() must not fail on object cleanup, got %v", err)
	}
	if err := assets.Delete(ctx, tpl.ID); err != nil {
		t.Fatal(err)
	}

	if len(env.files.removed) != 1 || env.files.removed[0] != "s3:123-map.png" {
		t.Errorf("removed objects = %v", env.files.removed)
	}
	if a, _ := assets.GetByID(ctx, file.ID); a != nil {
		t.Error("asset record survived delete")
	}
}

func TestFAQLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	faqs := env.repo.FAQ()

	first, err := faqs.Create(ctx, &models.FAQ{AuthorID: "u1", Question: "Q1", Answer: "A1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := faqs.Create(ctx, &models.FAQ{AuthorID: "u1", Question: "Q2", Answer: "A2"}); err != nil {
		t.Fatal(err)
	}

	list, err := faqs.List(ctx)
	if err != nil || len(list) != 2 || list[0].Question != "Q2" {
		t.Fatalf("List() = %v, %v", list, err)
	}

	updated, err := faqs.Update(ctx, first.ID, "Q1?", "A1!")
	if err != nil || updated.Question != "Q1?" || updated.AuthorID != "u1" {
		t.Fatalf("Update() = %v, %v", updated, err)
	}

	if _, err := faqs.Update(ctx, "ghost", "q", "a"); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Update(missing) error = %v", err)
	}

	if err := faqs.Delete(ctx, first.ID); err != nil {
		t.Fatal(err)
	}
	if f, _ := faqs.GetByID(ctx, first.ID); f != nil {
		t.Error("faq survived delete")
	}
}
