package persistence

import "time"

// SnapshotModel is one saved simulation snapshot (spec.md §4.12): the
// version gate, the tick it was taken at, and when it was written. The
// per-entity-kind world columns and named resources live in their own
// tables so an old snapshot row can be read without decoding data for
// columns or resources the reader doesn't recognize.
type SnapshotModel struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Version   string    `gorm:"column:version;not null"`
	Tick      uint64    `gorm:"column:tick;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

func (SnapshotModel) TableName() string {
	return "snapshots"
}

// SnapshotColumnModel is one entity kind's gob-encoded slot-map export for
// one snapshot (spec.md §4.12 "column-oriented serialization... one column
// per component kind"). Data holds a gob-encoded []slotmap.SlotSnapshot[T]
// for that kind; an unrecognized Name is skipped on load rather than
// failing the whole snapshot.
type SnapshotColumnModel struct {
	SnapshotID uint   `gorm:"column:snapshot_id;primaryKey;not null"`
	Name       string `gorm:"column:name;primaryKey;not null"`
	Data       []byte `gorm:"column:data;type:blob;not null"`
}

func (SnapshotColumnModel) TableName() string {
	return "snapshot_columns"
}

// SnapshotResourceModel is one named resource's gob-encoded state (spec.md
// §4.12 "resources: name -> bytes map... each deserialized by name so
// additions are backward-compatible in one direction").
type SnapshotResourceModel struct {
	SnapshotID uint   `gorm:"column:snapshot_id;primaryKey;not null"`
	Name       string `gorm:"column:name;primaryKey;not null"`
	Data       []byte `gorm:"column:data;type:blob;not null"`
}

func (SnapshotResourceModel) TableName() string {
	return "snapshot_resources"
}
