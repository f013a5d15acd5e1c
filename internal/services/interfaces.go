package services

import (
	"context"
	"io"

	"github.com/ibuddy-app/ibuddy-service/internal/authz"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
)

// Every operation takes the acting user explicitly. Handlers resolve it from
// the session.

// ===== SERVICE INTERFACES =====

type AuthService interface {
	Signup(ctx context.Context, req *SignupRequest) (*Session, error)
	Signin(ctx context.Context, req *SigninRequest) (*Session, error)
	// Authenticate resolves a session token to its user.
	Authenticate(ctx context.Context, token string) (*models.User, error)
	ChangePassword(ctx context.Context, actor *models.User, req *ChangePasswordRequest) error
}

type UserService interface {
	List(ctx context.Context, actor *models.User) ([]*models.User, error)
	ListActiveBuddies(ctx context.Context, actor *models.User) ([]*models.User, error)
	RoleOptions(actor *models.User) []RoleOption
	Get(ctx context.Context, actor *models.User, email string) (*UserDetail, error)
	Create(ctx context.Context, actor *models.User, req *CreateUserRequest) (*models.User, error)
	Update(ctx context.Context, actor *models.User, email string, req *UpdateUserRequest) (*models.User, error)
	CanDelete(ctx context.Context, actor *models.User, email string) (authz.Decision, error)
	Delete(ctx context.Context, actor *models.User, email string) error
}

type MenteeService interface {
	// List returns the actor's own mentees for buddies or when onlyMine is
	// set, every mentee otherwise.
	List(ctx context.Context, actor *models.User, onlyMine bool) ([]*models.Mentee, error)
	Get(ctx context.Context, actor *models.User, id string) (*MenteeDetail, error)
	Create(ctx context.Context, actor *models.User, req *CreateMenteeRequest) (*models.Mentee, error)
	Update(ctx context.Context, actor *models.User, id string, req *UpdateMenteeRequest) (*models.Mentee, error)
	UpdateStatus(ctx context.Context, actor *models.User, id string, status models.MenteeStatus) (*models.Mentee, error)
	Delete(ctx context.Context, actor *models.User, id string) error

	ListNotes(ctx context.Context, actor *models.User, menteeID string) ([]*NoteView, error)
	CreateNote(ctx context.Context, actor *models.User, menteeID, content string) (*models.Note, error)
	UpdateNote(ctx context.Context, actor *models.User, menteeID, noteID, content string) (*models.Note, error)
	DeleteNote(ctx context.Context, actor *models.User, menteeID, noteID string) error

	// Export writes an XLSX workbook of the mentees visible to the actor.
	Export(ctx context.Context, actor *models.User, w io.Writer) error
}

type AssetService interface {
	List(ctx context.Context, actor *models.User, assetType *models.AssetType) ([]*models.Asset, error)
	Get(ctx context.Context, actor *models.User, id string) (*models.Asset, error)
	IsNameAvailable(ctx context.Context, name string) (bool, error)
	UploadFile(ctx context.Context, actor *models.User, req *UploadFileRequest, body io.Reader) (*models.Asset, error)
	CreateTemplate(ctx context.Context, actor *models.User, req *CreateTemplateRequest) (*models.Asset, error)
	Update(ctx context.Context, actor *models.User, id string, req *UpdateAssetRequest) (*models.Asset, error)
	Delete(ctx context.Context, actor *models.User, id string) error
	Download(ctx context.Context, actor *models.User, id string) (*Download, error)
}

type FAQService interface {
	List(ctx context.Context, actor *models.User) ([]*FAQView, error)
	Get(ctx context.Context, actor *models.User, id string) (*FAQView, error)
	Create(ctx context.Context, actor *models.User, req *FAQRequest) (*models.FAQ, error)
	Update(ctx context.Context, actor *models.User, id string, req *FAQRequest) (*models.FAQ, error)
	Delete(ctx context.Context, actor *models.User, id string) error
}

type MailService interface {
	SendToMentees(ctx context.Context, actor *models.User, req *SendEmailRequest) (*SendEmailResult, error)
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	Auth() AuthService
	User() UserService
	Mentee() MenteeService
	Asset() AssetService
	FAQ() FAQService
	Mail() MailService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
