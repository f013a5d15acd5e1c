package models

import (
	"time"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type Degree string

const (
	DegreeBachelor Degree = "bachelor"
	DegreeMaster   Degree = "master"
	DegreeOthers   Degree = "others"
)

type Mentee struct {
	ID                 string       `json:"id"`
	BuddyID            string       `json:"buddyId"`
	FirstName          string       `json:"firstName"`
	LastName           string       `json:"lastName"`
	Email              string       `json:"email"`
	SearchableEmail    string       `json:"searchableEmail"`
	Gender             Gender       `json:"gender,omitempty"`
	Degree             Degree       `json:"degree,omitempty"`
	CountryCode        string       `json:"countryCode,omitempty"`
	HomeUniversity     string       `json:"homeUniversity,omitempty"`
	HostFaculty        string       `json:"hostFaculty,omitempty"`
	AgreementStartDate *time.Time   `json:"agreementStartDate,omitempty"`
	AgreementEndDate   *time.Time   `json:"agreementEndDate,omitempty"`
	Status             MenteeStatus `json:"status"`
	CreatedAt          time.Time    `json:"createdAt"`
	UpdatedAt          time.Time    `json:"updatedAt"`
}

func (m *Mentee) FullName() string {
	return m.FirstName + " " + m.LastName
}

type Note struct {
	ID        string    `json:"id"`
	MenteeID  string    `json:"menteeId"`
	AuthorID  string    `json:"authorId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
