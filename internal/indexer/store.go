package indexer

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SplitRecord is a stored Split notification.
type SplitRecord struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	Height uint32 `gorm:"index"`
	TxHash string `gorm:"type:char(64);uniqueIndex:idx_split_notification"`
	Index  int    `gorm:"column:notification_index;uniqueIndex:idx_split_notification"`

	Sender     string `gorm:"type:char(40);index"`
	Recipient1 string `gorm:"type:char(40);index"`
	Recipient2 string `gorm:"type:char(40);index"`
	Owner      string `gorm:"type:char(40)"`
	// Amounts are decimal strings, NeoVM integers do not fit into SQL ones.
	Share   string `gorm:"type:varchar(80)"`
	Fee     string `gorm:"type:varchar(80)"`
	Charged string `gorm:"type:varchar(80)"`
}

// TableName implements [schema.Tabler].
func (*SplitRecord) TableName() string {
	return "splits"
}

// WithdrawRecord is a stored Withdraw notification.
type WithdrawRecord struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	Height uint32 `gorm:"index"`
	TxHash string `gorm:"type:char(64);uniqueIndex:idx_withdraw_notification"`
	Index  int    `gorm:"column:notification_index;uniqueIndex:idx_withdraw_notification"`

	User   string `gorm:"type:char(40);index"`
	Amount string `gorm:"type:varchar(80)"`
}

// TableName implements [schema.Tabler].
func (*WithdrawRecord) TableName() string {
	return "withdrawals"
}

// Cursor keeps the last indexed block of a contract.
type Cursor struct {
	Contract string `gorm:"type:char(40);primaryKey"`
	Height   uint32
}

// TableName implements [schema.Tabler].
func (*Cursor) TableName() string {
	return "cursors"
}

// BlockRecords is everything stored for one block.
type BlockRecords struct {
	Height    uint32
	Splits    []SplitRecord
	Withdraws []WithdrawRecord
}

// Store persists indexed notifications.
type Store interface {
	// Cursor returns the last indexed height of the contract. Second value
	// is false if nothing has been indexed yet.
	Cursor(ctx context.Context, contract string) (uint32, bool, error)
	// SaveBlock atomically stores block records and moves the cursor to the
	// block height.
	SaveBlock(ctx context.Context, contract string, b BlockRecords) error
}

// GormStore is a Store backed by GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore returns GormStore using db. Tables are created or migrated.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&SplitRecord{}, &WithdrawRecord{}, &Cursor{}); err != nil {
		return nil, fmt.Errorf("migrate tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Cursor implements Store.
func (s *GormStore) Cursor(ctx context.Context, contract string) (uint32, bool, error) {
	var c Cursor

	err := s.db.WithContext(ctx).Where("contract = ?", contract).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("select cursor: %w", err)
	}

	return c.Height, true, nil
}

// SaveBlock implements Store. Records already stored are skipped, so a
// block can be saved again after a crash.
func (s *GormStore) SaveBlock(ctx context.Context, contract string, b BlockRecords) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(b.Splits) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&b.Splits).Error; err != nil {
				return fmt.Errorf("insert splits: %w", err)
			}
		}

		if len(b.Withdraws) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&b.Withdraws).Error; err != nil {
				return fmt.Errorf("insert withdrawals: %w", err)
			}
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contract"}},
			DoUpdates: clause.AssignmentColumns([]string{"height"}),
		}).Create(&Cursor{Contract: contract, Height: b.Height}).Error
		if err != nil {
			return fmt.Errorf("update cursor: %w", err)
		}

		return nil
	})
}
