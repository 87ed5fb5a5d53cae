package splitter

import "time"

type SplitRun struct {
	ID          uint      `gorm:"primaryKey"`
	RunID       string    `gorm:"uniqueIndex;size:36"`
	InputPath   string    `gorm:"index;size:1024"`
	InputSHA256 string    `gorm:"column:input_sha256;index;size:64"`
	OutDir      string    `gorm:"size:1024"`
	StartedAt   time.Time `gorm:"index"`
	FinishedAt  *time.Time
	// EventsWritten counts output files, including those written before a fatal error.
	EventsWritten int
	LastError     string `gorm:"type:text"`
}

type SplitOutput struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        string `gorm:"index;size:36"`
	CoincEventID string `gorm:"index;size:128"`
	Path         string `gorm:"size:1024"`
	SHA256       string `gorm:"column:sha256;size:64"`
	SizeBytes    int64
	SingleEvents int
	Series       int
	WrittenAt    time.Time `gorm:"index"`
}
