// Package gormstore implements store.Table on PostgreSQL through gorm. All
// tables share one kv_items relation keyed by (tbl, pk, sk); attributes are
// kept in a JSONB column and indexes are answered with JSON queries.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ibuddy-app/ibuddy-service/internal/store"
)

type KVItem struct {
	Tbl       string            `gorm:"column:tbl;primaryKey;size:64"`
	PK        string            `gorm:"column:pk;primaryKey;size:512"`
	SK        string            `gorm:"column:sk;primaryKey;size:512"`
	Attrs     datatypes.JSONMap `gorm:"column:attrs;type:jsonb;not null"`
	CreatedAt time.Time         `gorm:"column:created_at"`
	UpdatedAt time.Time         `gorm:"column:updated_at"`
}

func (KVItem) TableName() string {
	return "kv_items"
}

// Migrate creates or updates the kv_items relation.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&KVItem{})
}

type Table struct {
	db     *gorm.DB
	schema store.Schema
}

var _ store.Table = (*Table)(nil)

func New(db *gorm.DB, schema store.Schema) *Table {
	return &Table{db: db, schema: schema}
}

func (t *Table) Schema() store.Schema { return t.schema }

func (t *Table) keyScope(key store.Key) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tbl = ? AND pk = ? AND sk = ?", t.schema.Name, key.PK, key.SK)
	}
}

func toItem(row KVItem) store.Item {
	item := store.Item(row.Attrs)
	if item == nil {
		item = store.Item{}
	}
	item[store.AttrPK] = row.PK
	item[store.AttrSK] = row.SK
	return item
}

func toItems(rows []KVItem) []store.Item {
	items := make([]store.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, toItem(r))
	}
	return items
}

func (t *Table) row(key store.Key, item store.Item) KVItem {
	now := time.Now().UTC()
	return KVItem{
		Tbl:       t.schema.Name,
		PK:        key.PK,
		SK:        key.SK,
		Attrs:     datatypes.JSONMap(store.PrepareItem(key, item)),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (t *Table) Get(ctx context.Context, key store.Key) (store.Item, error) {
	var row KVItem
	err := t.db.WithContext(ctx).Scopes(t.keyScope(key)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("gormstore: get %s: %w", key, err)
	}
	return toItem(row), nil
}

func (t *Table) Put(ctx context.Context, key store.Key, item store.Item) error {
	row := t.row(key, item)
	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tbl"}, {Name: "pk"}, {Name: "sk"}},
		DoUpdates: clause.AssignmentColumns([]string{"attrs", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("gormstore: put %s: %w", key, err)
	}
	return nil
}

func (t *Table) Create(ctx context.Context, key store.Key, item store.Item) error {
	row := t.row(key, item)
	res := t.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("gormstore: create %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrConditionFailed
	}
	return nil
}

func (t *Table) Update(ctx context.Context, key store.Key, patch store.Item) (store.Item, error) {
	var merged store.Item
	err := t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row KVItem
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Scopes(t.keyScope(key)).First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return store.ErrNotFound
			}
			return err
		}
		merged = store.Merge(toItem(row), patch)
		return tx.Model(&KVItem{}).Scopes(t.keyScope(key)).Updates(map[string]any{
			"attrs":      datatypes.JSONMap(merged),
			"updated_at": time.Now().UTC(),
		}).Error
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("gormstore: update %s: %w", key, err)
	}
	return merged, nil
}

func (t *Table) Delete(ctx context.Context, key store.Key) error {
	if err := t.db.WithContext(ctx).Scopes(t.keyScope(key)).Delete(&KVItem{}).Error; err != nil {
		return fmt.Errorf("gormstore: delete %s: %w", key, err)
	}
	return nil
}

func (t *Table) Query(ctx context.Context, pk, skPrefix string) ([]store.Item, error) {
	q := t.db.WithContext(ctx).Where("tbl = ? AND pk = ?", t.schema.Name, pk)
	if skPrefix != "" {
		q = q.Where(`sk LIKE ? ESCAPE '\'`, escapeLike(skPrefix)+"%")
	}
	var rows []KVItem
	if err := q.Order("sk").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gormstore: query %s: %w", pk, err)
	}
	return toItems(rows), nil
}

func (t *Table) QueryIndex(ctx context.Context, index, value string) ([]store.Item, error) {
	attr, err := t.schema.IndexAttr(index)
	if err != nil {
		return nil, err
	}
	var rows []KVItem
	err = t.db.WithContext(ctx).
		Where("tbl = ?", t.schema.Name).
		Where(datatypes.JSONQuery("attrs").Equals(value, attr)).
		Order("pk, sk").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("gormstore: query index %s: %w", index, err)
	}
	return toItems(rows), nil
}

// Scan pushes plain equality filters into SQL and evaluates anything else
// after loading.
func (t *Table) Scan(ctx context.Context, cond store.Condition) ([]store.Item, error) {
	q := t.db.WithContext(ctx).Where("tbl = ?", t.schema.Name)
	if eq, ok := cond.(store.Eq); ok {
		q = q.Where(datatypes.JSONQuery("attrs").Equals(eq.Value, eq.Attr))
		cond = nil
	}
	var rows []KVItem
	if err := q.Order("pk, sk").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("gormstore: scan: %w", err)
	}
	return store.Filter(toItems(rows), cond), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
