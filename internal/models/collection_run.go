package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RunStatusSuccess      = "success"
	RunStatusPartialError = "partial_error"
)

// CollectionRun is the append-only audit row written once per save.
type CollectionRun struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	RunID             string    `json:"run_id" gorm:"size:36;uniqueIndex;not null"`
	TotalFetched      int       `json:"total_fetched" gorm:"not null;default:0"`
	NewInserted       int       `json:"new_inserted" gorm:"not null;default:0"`
	Updated           int       `json:"updated" gorm:"not null;default:0"`
	DuplicatesSkipped int       `json:"duplicates_skipped" gorm:"not null;default:0"`
	ErrorCount        int       `json:"error_count" gorm:"not null;default:0"`
	Status            string    `json:"status" gorm:"size:20;not null;default:'success'"`
	CreatedAt         time.Time `json:"created_at" gorm:"index"`
}

func (CollectionRun) TableName() string {
	return "collection_runs"
}

// BeforeCreate assigns a run id when the caller did not.
func (r *CollectionRun) BeforeCreate(tx *gorm.DB) error {
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}
	return nil
}

// RunStatus derives the audit status from an error tally.
func RunStatus(errorCount int) string {
	if errorCount > 0 {
		return RunStatusPartialError
	}
	return RunStatusSuccess
}
