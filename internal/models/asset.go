package models

import (
	"strings"
	"time"
)

type AssetType string

const (
	AssetTypeImage         AssetType = "image"
	AssetTypeDocument      AssetType = "document"
	AssetTypeEmailTemplate AssetType = "email-template"
)

func (t AssetType) IsValid() bool {
	switch t {
	case AssetTypeImage, AssetTypeDocument, AssetTypeEmailTemplate:
		return true
	}
	return false
}

// IsFile reports whether assets of this type carry a stored object.
func (t AssetType) IsFile() bool {
	return t == AssetTypeImage || t == AssetTypeDocument
}

type AssetHost string

const (
	AssetHostS3    AssetHost = "s3"
	AssetHostLocal AssetHost = "local"
)

type Asset struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"ownerId"`
	Name           string    `json:"name"`
	SearchableName string    `json:"searchableName"`
	Description    string    `json:"description,omitempty"`
	Type           AssetType `json:"type"`
	Host           AssetHost `json:"host,omitempty"`
	// Src is the storage key for files and the sanitised HTML body for templates.
	Src         string    `json:"src"`
	MimeType    string    `json:"mimeType,omitempty"`
	SharedUsers []string  `json:"sharedUsers"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IsSharedWith reports whether userID appears in the share list.
func (a *Asset) IsSharedWith(userID string) bool {
	for _, id := range a.SharedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// SearchableName is the normalised form asset names are unique under.
func SearchableName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
