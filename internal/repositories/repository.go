package repositories

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by writes addressed at a missing entity. Reads
	// return a nil entity instead.
	ErrNotFound = errors.New("entity not found")
	// ErrAlreadyExists is returned when a create collides with an existing key.
	ErrAlreadyExists = errors.New("entity already exists")
	// ErrInvariantViolation signals a state the store should never be in, such
	// as an entity missing right after it was written.
	ErrInvariantViolation = errors.New("invariant violation")
)

// Repository aggregates the entity repositories
type Repository interface {
	User() UserRepository
	Mentee() MenteeRepository
	Note() NoteRepository
	Asset() AssetRepository
	FAQ() FAQRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with store connections
	Initialize(ctx context.Context) error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
