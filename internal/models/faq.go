package models

import "time"

type FAQ struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
