// Package results persists finished races and answers personal-best
// queries.
package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/apexline/simcore/pkg/core"
)

// Record is the stored form of a finished race. Splits are kept as a
// JSON array of millisecond durations, one per checkpoint.
type Record struct {
	ID            uint      `gorm:"primarykey"`
	CourseName    string    `gorm:"index:idx_course_user"`
	UserID        int       `gorm:"index:idx_course_user"`
	StartedAt     time.Time
	FinishedAt    time.Time
	TotalMillis   int64     `gorm:"index"`
	Splits        datatypes.JSON
	OffTrackCount int
	CreatedAt     time.Time
}

func (Record) TableName() string { return "race_results" }

// Store wraps the results table.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the schema and returns the store.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrating race_results: %w", err)
	}
	return &Store{db: db}, nil
}

// SaveResult appends a finished race.
func (s *Store) SaveResult(r core.RaceResult) error {
	splits := make([]int64, len(r.Splits))
	for i, d := range r.Splits {
		splits[i] = d.Milliseconds()
	}
	data, err := json.Marshal(splits)
	if err != nil {
		return fmt.Errorf("encoding splits: %w", err)
	}

	rec := Record{
		CourseName:    r.CourseName,
		UserID:        r.UserID,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		TotalMillis:   r.Total.Milliseconds(),
		Splits:        datatypes.JSON(data),
		OffTrackCount: r.OffTrackCount,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return fmt.Errorf("saving race result: %w", err)
	}
	return nil
}

// PersonalBest returns the user's fastest run on the course. The bool
// is false when the user has no finished run there.
func (s *Store) PersonalBest(courseName string, userID int) (core.RaceResult, bool, error) {
	var rec Record
	err := s.db.
		Where("course_name = ? AND user_id = ?", courseName, userID).
		Order("total_millis asc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.RaceResult{}, false, nil
	}
	if err != nil {
		return core.RaceResult{}, false, fmt.Errorf("querying personal best: %w", err)
	}
	out, err := rec.toResult()
	return out, err == nil, err
}

// Leaderboard returns the fastest run per user on the course, best
// first, capped at limit.
func (s *Store) Leaderboard(courseName string, limit int) ([]core.RaceResult, error) {
	var recs []Record
	err := s.db.
		Where("course_name = ?", courseName).
		Where("total_millis = (SELECT MIN(total_millis) FROM race_results r2 WHERE r2.course_name = race_results.course_name AND r2.user_id = race_results.user_id)").
		Order("total_millis asc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}

	out := make([]core.RaceResult, 0, len(recs))
	for _, rec := range recs {
		r, err := rec.toResult()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// History returns the user's runs on the course, newest first.
func (s *Store) History(courseName string, userID int, limit int) ([]core.RaceResult, error) {
	var recs []Record
	err := s.db.
		Where("course_name = ? AND user_id = ?", courseName, userID).
		Order("finished_at desc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}

	out := make([]core.RaceResult, 0, len(recs))
	for _, rec := range recs {
		r, err := rec.toResult()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (rec Record) toResult() (core.RaceResult, error) {
	var millis []int64
	if len(rec.Splits) > 0 {
		if err := json.Unmarshal(rec.Splits, &millis); err != nil {
			return core.RaceResult{}, fmt.Errorf("decoding splits: %w", err)
		}
	}
	splits := make([]time.Duration, len(millis))
	for i, ms := range millis {
		splits[i] = time.Duration(ms) * time.Millisecond
	}
	return core.RaceResult{
		CourseName:    rec.CourseName,
		UserID:        rec.UserID,
		StartedAt:     rec.StartedAt,
		FinishedAt:    rec.FinishedAt,
		Total:         time.Duration(rec.TotalMillis) * time.Millisecond,
		Splits:        splits,
		OffTrackCount: rec.OffTrackCount,
	}, nil
}
