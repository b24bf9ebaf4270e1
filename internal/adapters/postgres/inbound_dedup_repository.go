package postgres

import (
	"context"
	"time"

	"github.com/melenae/task-tracker-app/internal/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// inboundDedupRepository backs inbound dedup with a table when no Redis is
// configured. Expired keys are replaced in place.
type inboundDedupRepository struct {
	db *gorm.DB
}

var _ ports.InboundDeduper = (*inboundDedupRepository)(nil)

func (r *inboundDedupRepository) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now().UTC()
	first := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dedup_key = ? AND expires_at <= ?", key, now).Delete(&inboundDedupModel{}).Error; err != nil {
			return err
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&inboundDedupModel{
			DedupKey:    key,
			ProcessedAt: now,
			ExpiresAt:   now.Add(ttl),
		})
		if res.Error != nil {
			return res.Error
		}
		first = res.RowsAffected == 1
		return nil
	})
	return first, err
}
