package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/simcore/simcore/internal/domain/simtime"
)

// ErrNoSnapshot is returned by LoadLatest when the snapshots table is
// empty.
var ErrNoSnapshot = errors.New("persistence: no snapshot to load")

// SnapshotRepositoryGORM stores and retrieves WorldSnapshots through GORM,
// one row per column/resource so an old snapshot can be read without
// decoding columns the reader doesn't recognize (spec.md §4.12).
type SnapshotRepositoryGORM struct {
	db *gorm.DB
}

// NewSnapshotRepository creates a new GORM-based snapshot repository.
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepositoryGORM {
	return &SnapshotRepositoryGORM{db: db}
}

// Save writes snap as a new row, atomically with every one of its column
// and resource rows (spec.md §4.12 "Save is synchronous").
func (r *SnapshotRepositoryGORM) Save(ctx context.Context, snap WorldSnapshot) (uint, error) {
	var id uint

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := &SnapshotModel{Version: snap.Version, Tick: uint64(snap.Tick)}
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}
		id = model.ID

		for name, data := range snap.Columns {
			col := &SnapshotColumnModel{SnapshotID: id, Name: name, Data: data}
			if err := tx.Create(col).Error; err != nil {
				return fmt.Errorf("failed to insert column %q: %w", name, err)
			}
		}

		for name, data := range snap.Resources {
			res := &SnapshotResourceModel{SnapshotID: id, Name: name, Data: data}
			if err := tx.Create(res).Error; err != nil {
				return fmt.Errorf("failed to insert resource %q: %w", name, err)
			}
		}

		return nil
	})

	return id, err
}

// LoadLatest returns the most recently saved snapshot.
func (r *SnapshotRepositoryGORM) LoadLatest(ctx context.Context) (WorldSnapshot, error) {
	var model SnapshotModel
	if err := r.db.WithContext(ctx).Order("id desc").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return WorldSnapshot{}, ErrNoSnapshot
		}
		return WorldSnapshot{}, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return r.loadByModel(ctx, model)
}

// LoadByID returns the snapshot saved under id.
func (r *SnapshotRepositoryGORM) LoadByID(ctx context.Context, id uint) (WorldSnapshot, error) {
	var model SnapshotModel
	if err := r.db.WithContext(ctx).First(&model, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return WorldSnapshot{}, ErrNoSnapshot
		}
		return WorldSnapshot{}, fmt.Errorf("failed to query snapshot %d: %w", id, err)
	}
	return r.loadByModel(ctx, model)
}

func (r *SnapshotRepositoryGORM) loadByModel(ctx context.Context, model SnapshotModel) (WorldSnapshot, error) {
	snap := WorldSnapshot{
		Version:   model.Version,
		Tick:      simtime.Tick(model.Tick),
		Columns:   make(map[string][]byte),
		Resources: make(map[string][]byte),
	}

	var columns []SnapshotColumnModel
	if err := r.db.WithContext(ctx).Where("snapshot_id = ?", model.ID).Find(&columns).Error; err != nil {
		return WorldSnapshot{}, fmt.Errorf("failed to query columns for snapshot %d: %w", model.ID, err)
	}
	for _, c := range columns {
		snap.Columns[c.Name] = c.Data
	}

	var resources []SnapshotResourceModel
	if err := r.db.WithContext(ctx).Where("snapshot_id = ?", model.ID).Find(&resources).Error; err != nil {
		return WorldSnapshot{}, fmt.Errorf("failed to query resources for snapshot %d: %w", model.ID, err)
	}
	for _, res := range resources {
		snap.Resources[res.Name] = res.Data
	}

	return snap, nil
}
