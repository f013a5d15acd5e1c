package models

import (
	"time"
)

type User struct {
	ID                 string     `json:"id"`
	Email              string     `json:"email"`
	SearchableEmail    string     `json:"searchableEmail"`
	FirstName          string     `json:"firstName"`
	LastName           string     `json:"lastName"`
	Faculty            string     `json:"faculty,omitempty"`
	Role               Role       `json:"role"`
	AgreementStartDate *time.Time `json:"agreementStartDate,omitempty"`
	AgreementEndDate   *time.Time `json:"agreementEndDate,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// IsActiveBuddy reports whether the user's agreement has not ended. Any role
// can mentor, so the role is not considered.
func (u *User) IsActiveBuddy(now time.Time) bool {
	return u.AgreementEndDate != nil && u.AgreementEndDate.After(now)
}

// Password is stored one-to-one with a User under the same id.
type Password struct {
	UserID string `json:"userId"`
	Hash   string `json:"hash"`
}
