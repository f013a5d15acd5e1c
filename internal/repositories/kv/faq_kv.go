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

type faqKV struct {
	table store.Table
	now   func() time.Time
	newID func() string
}

func (r *faqKV) Create(ctx context.Context, faq *models.FAQ) (*models.FAQ, error) {
	now := r.now()
	f := *faq
	f.ID = r.newID()
	f.CreatedAt = now
	f.UpdatedAt = now

	created, err := create[models.FAQ](ctx, r.table, rootKey(keys.FAQ(f.ID)), f)
	if err != nil {
		return nil, fmt.Errorf("create faq: %w", err)
	}
	return created, nil
}

func (r *faqKV) GetByID(ctx context.Context, id string) (*models.FAQ, error) {
	item, err := get(ctx, r.table, rootKey(keys.FAQ(id)))
	if err != nil {
		return nil, fmt.Errorf("get faq %s: %w", id, err)
	}
	return decode[models.FAQ](item)
}

func (r *faqKV) List(ctx context.Context) ([]*models.FAQ, error) {
	items, err := r.table.Scan(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list faqs: %w", err)
	}
	faqs, err := decodeAll[models.FAQ](items)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(faqs, func(i, j int) bool {
		return faqs[i].CreatedAt.After(faqs[j].CreatedAt)
	})
	return faqs, nil
}

func (r *faqKV) Update(ctx context.Context, id, question, answer string) (*models.FAQ, error) {
	patch := store.Item{
		"question":  question,
		"answer":    answer,
		"updatedAt": r.now().Format(time.RFC3339Nano),
	}
	f, err := update[models.FAQ](ctx, r.table, rootKey(keys.FAQ(id)), patch)
	if err != nil {
		return nil, fmt.Errorf("update faq %s: %w", id, err)
	}
	return f, nil
}

func (r *faqKV) Delete(ctx context.Context, id string) error {
	if err := r.table.Delete(ctx, rootKey(keys.FAQ(id))); err != nil {
		return fmt.Errorf("delete faq %s: %w", id, err)
	}
	return nil
}
