// Package billing implements the charge and cost-estimation collaborator
// used by the transcription orchestrator. Usage accounting is derived from
// the append-only billing ledger rather than a mutable counter, so retries
// and crashes never leave the quota state inconsistent.
package billing

import (
	"context"
	"time"

	"github.com/castworks/processor-api/internal/models"
	"gorm.io/gorm"
)

// Service answers quota questions and prices recognition work.
type Service interface {
	// Charge reports whether the user's monthly quota covers another
	// durationSeconds of recognized audio. It does not record anything;
	// the ledger row is written by the caller alongside the transcription.
	Charge(ctx context.Context, userID uint, durationSeconds int) (bool, error)

	// EstimateCost prices durationSeconds of recognition with the named
	// provider. Unknown providers price at zero.
	EstimateCost(provider string, durationSeconds int) float64
}

type service struct {
	db            *gorm.DB
	costPerMinute map[string]float64
	quotaSeconds  int
}

// New creates a billing service backed by the billing_records ledger.
// quotaSeconds of zero disables quota enforcement entirely.
func New(db *gorm.DB, costPerMinute map[string]float64, quotaSeconds int) Service {
	return &service{
		db:            db,
		costPerMinute: costPerMinute,
		quotaSeconds:  quotaSeconds,
	}
}

func (s *service) Charge(ctx context.Context, userID uint, durationSeconds int) (bool, error) {
	if s.quotaSeconds <= 0 {
		return true, nil
	}

	used, err := s.monthlyUsage(ctx, time.Now().UTC())
	if err != nil {
		return false, err
	}

	return used+int64(durationSeconds) <= int64(s.quotaSeconds), nil
}

func (s *service) EstimateCost(provider string, durationSeconds int) float64 {
	perMinute, ok := s.costPerMinute[provider]
	if !ok {
		return 0
	}
	return perMinute * float64(durationSeconds) / 60.0
}

// monthlyUsage sums the recognized seconds billed since the start of the
// calendar month containing now.
func (s *service) monthlyUsage(ctx context.Context, now time.Time) (int64, error) {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var used int64
	err := s.db.WithContext(ctx).
		Model(&models.BillingRecord{}).
		Where("created_at >= ?", monthStart).
		Select("COALESCE(SUM(audio_seconds), 0)").
		Scan(&used).Error
	if err != nil {
		return 0, err
	}
	return used, nil
}
