package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ibuddy-app/ibuddy-service/internal/keys"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/store"
)

const noteDeleteConcurrency = 8

type menteeKV struct {
	table  store.Table
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func (r *menteeKV) Create(ctx context.Context, mentee *models.Mentee) (*models.Mentee, error) {
	now := r.now()
	m := *mentee
	m.ID = r.newID()
	m.Email = strings.TrimSpace(m.Email)
	m.SearchableEmail = keys.NormalizeEmail(m.Email)
	if m.Status == "" {
		m.Status = models.MenteeStatusAssigned
	}
	m.CreatedAt = now
	m.UpdatedAt = now

	created, err := create[models.Mentee](ctx, r.table, rootKey(keys.Mentee(m.ID)), m)
	if err != nil {
		return nil, fmt.Errorf("create mentee: %w", err)
	}
	return created, nil
}

func (r *menteeKV) GetByID(ctx context.Context, id string) (*models.Mentee, error) {
	item, err := get(ctx, r.table, rootKey(keys.Mentee(id)))
	if err != nil {
		return nil, fmt.Errorf("get mentee %s: %w", id, err)
	}
	return decode[models.Mentee](item)
}

func (r *menteeKV) ListByBuddy(ctx context.Context, buddyID string) ([]*models.Mentee, error) {
	items, err := r.table.QueryIndex(ctx, IndexByBuddy, buddyID)
	if err != nil {
		return nil, fmt.Errorf("list mentees of %s: %w", buddyID, err)
	}
	mentees, err := decodeAll[models.Mentee](items)
	if err != nil {
		return nil, err
	}
	sortMentees(mentees)
	return mentees, nil
}

func (r *menteeKV) CountByBuddy(ctx context.Context, buddyID string) (int, error) {
	items, err := r.table.QueryIndex(ctx, IndexByBuddy, buddyID)
	if err != nil {
		return 0, fmt.Errorf("count mentees of %s: %w", buddyID, err)
	}
	return len(items), nil
}

func (r *menteeKV) ListAll(ctx context.Context) ([]*models.Mentee, error) {
	items, err := r.table.Scan(ctx, store.BeginsWith{Attr: store.AttrSK, Prefix: keys.SortKeyPrefix(keys.PrefixMentee)})
	if err != nil {
		return nil, fmt.Errorf("list mentees: %w", err)
	}
	mentees, err := decodeAll[models.Mentee](items)
	if err != nil {
		return nil, err
	}
	sortMentees(mentees)
	return mentees, nil
}

func sortMentees(mentees []*models.Mentee) {
	sort.SliceStable(mentees, func(i, j int) bool {
		return strings.ToLower(mentees[i].FullName()) < strings.ToLower(mentees[j].FullName())
	})
}

func (r *menteeKV) IsEmailUnique(ctx context.Context, email string) (bool, error) {
	items, err := r.table.Scan(ctx, store.Eq{Attr: "searchableEmail", Value: keys.NormalizeEmail(email)})
	if err != nil {
		return false, fmt.Errorf("check mentee email: %w", err)
	}
	return len(items) == 0, nil
}

func (r *menteeKV) Update(ctx context.Context, id string, patch repositories.MenteePatch) (*models.Mentee, error) {
	if patch.Email != nil {
		trimmed := strings.TrimSpace(*patch.Email)
		patch.Email = &trimmed
	}
	item, err := patchItem(patch, r.now())
	if err != nil {
		return nil, err
	}
	if patch.Email != nil {
		item["searchableEmail"] = keys.NormalizeEmail(*patch.Email)
	}
	m, err := update[models.Mentee](ctx, r.table, rootKey(keys.Mentee(id)), item)
	if err != nil {
		return nil, fmt.Errorf("update mentee %s: %w", id, err)
	}
	return m, nil
}

func (r *menteeKV) UpdateStatus(ctx context.Context, id string, status models.MenteeStatus) (*models.Mentee, error) {
	return r.Update(ctx, id, repositories.MenteePatch{Status: &status})
}

// Delete removes every note of the mentee concurrently, then the mentee. If
// any note survives, the mentee is kept so the delete can be retried.
func (r *menteeKV) Delete(ctx context.Context, id string) error {
	pk := keys.Mentee(id).String()
	notes, err := r.table.Query(ctx, pk, keys.SortKeyPrefix(keys.PrefixNote))
	if err != nil {
		return fmt.Errorf("delete mentee %s: list notes: %w", id, err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(noteDeleteConcurrency)
	for _, n := range notes {
		key := n.Key()
		g.Go(func() error {
			if err := r.table.Delete(gctx, key); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("note %s: %w", key.SK, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	if len(errs) > 0 {
		r.logger.Error("Failed to delete mentee notes", "mentee_id", id, "failed", len(errs), "total", len(notes))
		return fmt.Errorf("delete mentee %s: %w", id, errors.Join(errs...))
	}

	if err := r.table.Delete(ctx, rootKey(keys.Mentee(id))); err != nil {
		return fmt.Errorf("delete mentee %s: %w", id, err)
	}
	return nil
}
