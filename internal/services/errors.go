package services

import (
	"errors"
	"fmt"
)

// Generic errors
var (
	ErrValidationFailed = errors.New("validation failed")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")
	ErrExternalService  = errors.New("external service failure")
)

// User errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

// Mentee and note errors
var (
	ErrMenteeNotFound          = errors.New("mentee not found")
	ErrMenteeEmailTaken        = errors.New("mentee email already in use")
	ErrBuddyNotFound           = errors.New("buddy not found")
	ErrInvalidStatusTransition = errors.New("invalid mentee status transition")
	ErrNoteNotFound            = errors.New("note not found")
)

// Asset errors
var (
	ErrAssetNotFound       = errors.New("asset not found")
	ErrAssetNameTaken      = errors.New("asset name already in use")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
	ErrAssetNotFile        = errors.New("asset has no stored file")
)

// FAQ and e-mail errors
var (
	ErrFAQNotFound       = errors.New("faq not found")
	ErrInvalidRecipients = errors.New("invalid recipients")
	ErrInvalidVariables  = errors.New("invalid variables in body")
)

// PermissionError reports a denied authorization check.
type PermissionError struct {
	UserID     string
	ResourceID string
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %s: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func (e *PermissionError) Unwrap() error { return ErrForbidden }

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// externalError marks a failure of a collaborator outside the service.
func externalError(what string, err error) error {
	return fmt.Errorf("%s: %w: %w", what, ErrExternalService, err)
}
