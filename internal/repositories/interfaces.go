package repositories

import (
	"context"
	"time"

	"github.com/ibuddy-app/ibuddy-service/internal/models"
)

// Patch types carry optional fields; nil means "leave unchanged".

type UserPatch struct {
	FirstName          *string      `json:"firstName,omitempty"`
	LastName           *string      `json:"lastName,omitempty"`
	Faculty            *string      `json:"faculty,omitempty"`
	Role               *models.Role `json:"role,omitempty"`
	AgreementStartDate *time.Time   `json:"agreementStartDate,omitempty"`
	AgreementEndDate   *time.Time   `json:"agreementEndDate,omitempty"`
}

type MenteePatch struct {
	BuddyID            *string              `json:"buddyId,omitempty"`
	FirstName          *string              `json:"firstName,omitempty"`
	LastName           *string              `json:"lastName,omitempty"`
	Email              *string              `json:"email,omitempty"`
	Gender             *models.Gender       `json:"gender,omitempty"`
	Degree             *models.Degree       `json:"degree,omitempty"`
	CountryCode        *string              `json:"countryCode,omitempty"`
	HomeUniversity     *string              `json:"homeUniversity,omitempty"`
	HostFaculty        *string              `json:"hostFaculty,omitempty"`
	AgreementStartDate *time.Time           `json:"agreementStartDate,omitempty"`
	AgreementEndDate   *time.Time           `json:"agreementEndDate,omitempty"`
	Status             *models.MenteeStatus `json:"status,omitempty"`
}

type AssetPatch struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Src         *string   `json:"src,omitempty"`
	SharedUsers *[]string `json:"sharedUsers,omitempty"`
}

// UserRepository owns users and their password hashes.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// List returns every user ordered by full name.
	List(ctx context.Context) ([]*models.User, error)
	ListActiveBuddies(ctx context.Context, now time.Time) ([]*models.User, error)

	// Create stores the user together with the hash of password.
	Create(ctx context.Context, user *models.User, password string) (*models.User, error)
	Update(ctx context.Context, id string, patch UserPatch) (*models.User, error)
	ChangePassword(ctx context.Context, id, password string) error

	// VerifyLogin returns nil when the credentials do not match.
	VerifyLogin(ctx context.Context, email, password string) (*models.User, error)

	Delete(ctx context.Context, id string) error
	DeleteByEmail(ctx context.Context, email string) error
}

type MenteeRepository interface {
	Create(ctx context.Context, mentee *models.Mentee) (*models.Mentee, error)
	GetByID(ctx context.Context, id string) (*models.Mentee, error)
	ListByBuddy(ctx context.Context, buddyID string) ([]*models.Mentee, error)
	CountByBuddy(ctx context.Context, buddyID string) (int, error)
	ListAll(ctx context.Context) ([]*models.Mentee, error)
	IsEmailUnique(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, id string, patch MenteePatch) (*models.Mentee, error)
	UpdateStatus(ctx context.Context, id string, status models.MenteeStatus) (*models.Mentee, error)
	// Delete removes the mentee and every note in its partition.
	Delete(ctx context.Context, id string) error
}

// NoteRepository stores notes inside their mentee's partition.
type NoteRepository interface {
	Create(ctx context.Context, note *models.Note) (*models.Note, error)
	Get(ctx context.Context, menteeID, noteID string) (*models.Note, error)
	// ListByMentee returns notes newest first.
	ListByMentee(ctx context.Context, menteeID string) ([]*models.Note, error)
	Update(ctx context.Context, menteeID, noteID, content string) (*models.Note, error)
	Delete(ctx context.Context, menteeID, noteID string) error
}

// FileRemover deletes the stored object behind a file asset.
type FileRemover interface {
	Remove(ctx context.Context, host models.AssetHost, key string) error
}

type AssetRepository interface {
	// IsNameUnique compares names case-insensitively, ignoring surrounding space.
	IsNameUnique(ctx context.Context, name string) (bool, error)
	Create(ctx context.Context, asset *models.Asset) (*models.Asset, error)
	GetByID(ctx context.Context, id string) (*models.Asset, error)
	Update(ctx context.Context, id string, patch AssetPatch) (*models.Asset, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Asset, error)
	// ListAccessible returns assets owned by or shared with userID. A nil
	// assetType lists every type.
	ListAccessible(ctx context.Context, userID string, assetType *models.AssetType) ([]*models.Asset, error)
	ListAll(ctx context.Context, assetType *models.AssetType) ([]*models.Asset, error)
	// Delete removes the record, then the stored object. A failed object
	// removal is logged and does not fail the call.
	Delete(ctx context.Context, id string) error
}

type FAQRepository interface {
	Create(ctx context.Context, faq *models.FAQ) (*models.FAQ, error)
	GetByID(ctx context.Context, id string) (*models.FAQ, error)
	// List returns FAQs newest first.
	List(ctx context.Context) ([]*models.FAQ, error)
	Update(ctx context.Context, id, question, answer string) (*models.FAQ, error)
	Delete(ctx context.Context, id string) error
}
