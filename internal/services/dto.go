package services

import (
	"io"
	"time"

	"github.com/ibuddy-app/ibuddy-service/internal/authz"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
)

// ===== AUTH =====

type SignupRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=255,person_name"`
	LastName  string `json:"lastName" validate:"required,min=2,max=255,person_name"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,strong_password"`
}

type SigninRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,strong_password"`
}

// Session is a signed token for an authenticated user.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// ===== USERS =====

type CreateUserRequest struct {
	FirstName          string      `json:"firstName" validate:"required,min=2,max=255,person_name"`
	LastName           string      `json:"lastName" validate:"required,min=2,max=255,person_name"`
	Email              string      `json:"email" validate:"required,email"`
	Password           string      `json:"password" validate:"required,strong_password"`
	Faculty            string      `json:"faculty" validate:"required,max=255"`
	Role               models.Role `json:"role" validate:"required,user_role"`
	AgreementStartDate string      `json:"agreementStartDate" validate:"required,date_string"`
	AgreementEndDate   string      `json:"agreementEndDate" validate:"required,date_string"`
}

func (r CreateUserRequest) AgreementDates() (string, string) {
	return r.AgreementStartDate, r.AgreementEndDate
}

type UpdateUserRequest struct {
	FirstName          string      `json:"firstName" validate:"required,min=2,max=255,person_name"`
	LastName           string      `json:"lastName" validate:"required,min=2,max=255,person_name"`
	Faculty            string      `json:"faculty" validate:"required,max=255"`
	Role               models.Role `json:"role" validate:"required,user_role"`
	AgreementStartDate string      `json:"agreementStartDate" validate:"required,date_string"`
	AgreementEndDate   string      `json:"agreementEndDate" validate:"required,date_string"`
}

func (r UpdateUserRequest) AgreementDates() (string, string) {
	return r.AgreementStartDate, r.AgreementEndDate
}

// RoleOption is one entry of the role picker. Disabled roles cannot be
// granted by the actor.
type RoleOption struct {
	Role     models.Role `json:"role"`
	Label    string      `json:"label"`
	Disabled bool        `json:"disabled"`
}

type UserDetail struct {
	*models.User
	FullName  string         `json:"fullName"`
	CanDelete authz.Decision `json:"canDelete"`
	CanEdit   bool           `json:"canEdit"`
}

// ===== MENTEES =====

type CreateMenteeRequest struct {
	BuddyID            string `json:"buddyId" validate:"required"`
	FirstName          string `json:"firstName" validate:"required,min=2,max=255,person_name"`
	LastName           string `json:"lastName" validate:"required,min=2,max=255,person_name"`
	Email              string `json:"email" validate:"required,email"`
	Gender             string `json:"gender" validate:"required,gender"`
	Degree             string `json:"degree" validate:"required,degree"`
	CountryCode        string `json:"countryCode" validate:"required,country_code"`
	HomeUniversity     string `json:"homeUniversity" validate:"required,max=255"`
	HostFaculty        string `json:"hostFaculty" validate:"required,max=255"`
	AgreementStartDate string `json:"agreementStartDate" validate:"required,date_string"`
	AgreementEndDate   string `json:"agreementEndDate" validate:"required,date_string"`
	Notes              string `json:"notes" validate:"omitempty,max=2000"`
}

func (r CreateMenteeRequest) AgreementDates() (string, string) {
	return r.AgreementStartDate, r.AgreementEndDate
}

// UpdateMenteeRequest is partial: omitted fields keep their value.
type UpdateMenteeRequest struct {
	BuddyID            *string `json:"buddyId" validate:"omitempty,min=1"`
	FirstName          *string `json:"firstName" validate:"omitempty,min=2,max=255,person_name"`
	LastName           *string `json:"lastName" validate:"omitempty,min=2,max=255,person_name"`
	Email              *string `json:"email" validate:"omitempty,email"`
	Gender             *string `json:"gender" validate:"omitempty,gender"`
	Degree             *string `json:"degree" validate:"omitempty,degree"`
	CountryCode        *string `json:"countryCode" validate:"omitempty,country_code"`
	HomeUniversity     *string `json:"homeUniversity" validate:"omitempty,min=1,max=255"`
	HostFaculty        *string `json:"hostFaculty" validate:"omitempty,min=1,max=255"`
	AgreementStartDate *string `json:"agreementStartDate" validate:"omitempty,date_string"`
	AgreementEndDate   *string `json:"agreementEndDate" validate:"omitempty,date_string"`
}

func (r UpdateMenteeRequest) AgreementDates() (string, string) {
	if r.AgreementStartDate == nil || r.AgreementEndDate == nil {
		return "", ""
	}
	return *r.AgreementStartDate, *r.AgreementEndDate
}

type UpdateStatusRequest struct {
	Status models.MenteeStatus `json:"status" validate:"required,mentee_status"`
}

type NoteRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type UserSummary struct {
	ID       string      `json:"id"`
	Email    string      `json:"email"`
	FullName string      `json:"fullName"`
	Role     models.Role `json:"role"`
}

func summarize(u *models.User) *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Email: u.Email, FullName: u.FullName(), Role: u.Role}
}

type MenteeDetail struct {
	*models.Mentee
	StatusLabel string       `json:"statusLabel"`
	Buddy       *UserSummary `json:"buddy,omitempty"`
	CanMutate   bool         `json:"canMutate"`
}

type NoteView struct {
	*models.Note
	Author       *UserSummary `json:"author,omitempty"`
	CanBeMutated bool         `json:"canBeMutated"`
}

// ===== ASSETS =====

// UploadFileRequest carries a multipart file. Body is read once.
type UploadFileRequest struct {
	Name        string   `json:"name" validate:"required,asset_name"`
	Description string   `json:"description" validate:"omitempty,max=2000"`
	SharedUsers []string `json:"sharedUsers" validate:"omitempty,dive,required"`
	FileName    string   `json:"-"`
	ContentType string   `json:"-"`
	Size        int64    `json:"-"`
}

type CreateTemplateRequest struct {
	Name        string   `json:"name" validate:"required,asset_name"`
	Description string   `json:"description" validate:"omitempty,max=2000"`
	Body        string   `json:"body" validate:"required"`
	SharedUsers []string `json:"sharedUsers" validate:"omitempty,dive,required"`
}

type UpdateAssetRequest struct {
	Name        *string   `json:"name" validate:"omitempty,asset_name"`
	Description *string   `json:"description" validate:"omitempty,max=2000"`
	Body        *string   `json:"body"`
	SharedUsers *[]string `json:"sharedUsers" validate:"omitempty,dive,required"`
}

// Download is either a signed URL or an open stream of the stored file.
type Download struct {
	URL         string
	Body        io.ReadCloser
	ContentType string
	FileName    string
}

// ===== FAQS =====

type FAQRequest struct {
	Question string `json:"question" validate:"required,max=1000"`
	Answer   string `json:"answer" validate:"required,max=5000"`
}

type FAQView struct {
	*models.FAQ
	CanMutate bool `json:"canMutate"`
}

// ===== E-MAIL =====

type SendEmailRequest struct {
	Recipients []string `json:"recipients" validate:"required,min=1,dive,email"`
	Subject    string   `json:"subject" validate:"required,max=998"`
	Body       string   `json:"body" validate:"required_without=TemplateID"`
	TemplateID string   `json:"templateId"`
}

type SendEmailResult struct {
	Sent         int  `json:"sent"`
	Personalized bool `json:"personalized"`
}
