package kv

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ibuddy-app/ibuddy-service/internal/keys"
	"github.com/ibuddy-app/ibuddy-service/internal/models"
	"github.com/ibuddy-app/ibuddy-service/internal/repositories"
	"github.com/ibuddy-app/ibuddy-service/internal/store"
)

type assetKV struct {
	table  store.Table
	files  repositories.FileRemover
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func (r *assetKV) IsNameUnique(ctx context.Context, name string) (bool, error) {
	items, err := r.table.QueryIndex(ctx, IndexBySearchableName, models.SearchableName(name))
	if err != nil {
		return false, fmt.Errorf("check asset name: %w", err)
	}
	return len(items) == 0, nil
}

func (r *assetKV) Create(ctx context.Context, asset *models.Asset) (*models.Asset, error) {
	now := r.now()
	a := *asset
	a.ID = r.newID()
	a.Name = strings.TrimSpace(a.Name)
	a.SearchableName = models.SearchableName(a.Name)
	if a.SharedUsers == nil {
		a.SharedUsers = []string{}
	}
	a.CreatedAt = now
	a.UpdatedAt = now

	created, err := create[models.Asset](ctx, r.table, rootKey(keys.Asset(a.ID)), a)
	if err != nil {
		return nil, fmt.Errorf("create asset: %w", err)
	}
	return created, nil
}

func (r *assetKV) GetByID(ctx context.Context, id string) (*models.Asset, error) {
	item, err := get(ctx, r.table, rootKey(keys.Asset(id)))
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", id, err)
	}
	return decode[models.Asset](item)
}

func (r *assetKV) Update(ctx context.Context, id string, patch repositories.AssetPatch) (*models.Asset, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}
	item, err := patchItem(patch, r.now())
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		item["searchableName"] = models.SearchableName(*patch.Name)
	}
	a, err := update[models.Asset](ctx, r.table, rootKey(keys.Asset(id)), item)
	if err != nil {
		return nil, fmt.Errorf("update asset %s: %w", id, err)
	}
	return a, nil
}

func (r *assetKV) ListByOwner(ctx context.Context, ownerID string) ([]*models.Asset, error) {
	items, err := r.table.QueryIndex(ctx, IndexByOwner, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list assets of %s: %w", ownerID, err)
	}
	return decodeAssets(items)
}

func (r *assetKV) ListAccessible(ctx context.Context, userID string, assetType *models.AssetType) ([]*models.Asset, error) {
	var cond store.Condition = store.Or{
		store.Eq{Attr: "ownerId", Value: userID},
		store.Contains{Attr: "sharedUsers", Value: userID},
	}
	if assetType != nil {
		cond = store.And{cond, store.Eq{Attr: "type", Value: string(*assetType)}}
	}
	items, err := r.table.Scan(ctx, cond)
	if err != nil {
		return nil, fmt.Errorf("list assets for %s: %w", userID, err)
	}
	return decodeAssets(items)
}

func (r *assetKV) ListAll(ctx context.Context, assetType *models.AssetType) ([]*models.Asset, error) {
	var cond store.Condition
	if assetType != nil {
		cond = store.Eq{Attr: "type", Value: string(*assetType)}
	}
	items, err := r.table.Scan(ctx, cond)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return decodeAssets(items)
}

func decodeAssets(items []store.Item) ([]*models.Asset, error) {
	assets, err := decodeAll[models.Asset](items)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(assets, func(i, j int) bool {
		return assets[i].CreatedAt.After(assets[j].CreatedAt)
	})
	return assets, nil
}

func (r *assetKV) Delete(ctx context.Context, id string) error {
	asset, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if asset == nil {
		return nil
	}
	if err := r.table.Delete(ctx, rootKey(keys.Asset(id))); err != nil {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}

	if !asset.Type.IsFile() || asset.Src == "" || r.files == nil {
		return nil
	}
	if err := r.files.Remove(ctx, asset.Host, asset.Src); err != nil {
		r.logger.Error("Failed to remove stored object of deleted asset",
			"asset_id", id, "host", asset.Host, "key", asset.Src, "error", err)
	}
	return nil
}
