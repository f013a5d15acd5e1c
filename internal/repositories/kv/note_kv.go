package kv

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ibuddy-app/ibuddy-service/internal/keys"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/store"
)

type noteKV struct {
	table store.Table
	now   func() time.Time
	newID func() string
}

func (r *noteKV) Create(ctx context.Context, note *models.Note) (*models.Note, error) {
	now := r.now()
	n := *note
	n.ID = r.newID()
	n.CreatedAt = now
	n.UpdatedAt = now

	created, err := create[models.Note](ctx, r.table, childKey(keys.Note(n.MenteeID, n.ID)), n)
	if err != nil {
		return nil, fmt.Errorf("create note for mentee %s: %w", n.MenteeID, err)
	}
	return created, nil
}

func (r *noteKV) Get(ctx context.Context, menteeID, noteID string) (*models.Note, error) {
	item, err := get(ctx, r.table, childKey(keys.Note(menteeID, noteID)))
	if err != nil {
		return nil, fmt.Errorf("get note %s: %w", noteID, err)
	}
	return decode[models.Note](item)
}

func (r *noteKV) ListByMentee(ctx context.Context, menteeID string) ([]*models.Note, error) {
	items, err := r.table.Query(ctx, keys.Mentee(menteeID).String(), keys.SortKeyPrefix(keys.PrefixNote))
	if err != nil {
		return nil, fmt.Errorf("list notes of %s: %w", menteeID, err)
	}
	notes, err := decodeAll[models.Note](items)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
	return notes, nil
}

func (r *noteKV) Update(ctx context.Context, menteeID, noteID, content string) (*models.Note, error) {
	patch := store.Item{
		"content":   content,
		"updatedAt": r.now().Format(time.RFC3339Nano),
	}
	n, err := update[models.Note](ctx, r.table, childKey(keys.Note(menteeID, noteID)), patch)
	if err != nil {
		return nil, fmt.Errorf("update note %s: %w", noteID, err)
	}
	return n, nil
}

func (r *noteKV) Delete(ctx context.Context, menteeID, noteID string) error {
	if err := r.table.Delete(ctx, childKey(keys.Note(menteeID, noteID))); err != nil {
		return fmt.Errorf("delete note %s: %w", noteID, err)
	}
	return nil
}
