package postgres

import (
	"context"
	"fmt"

	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
	"gorm.io/gorm"
)

type deadLetterRepository struct {
	db *gorm.DB
}

var _ ports.DeadLetterRepository = (*deadLetterRepository)(nil)

func (r *deadLetterRepository) Record(ctx context.Context, letter ports.DeadLetter) error {
	rec := deadLetterModel{
		DeadLetterID: letter.DeadLetterID,
		EventType:    letter.EventType,
		IssueID:      letter.IssueID,
		PartitionKey: letter.PartitionKey,
		Payload:      string(letter.Payload),
		Attempts:     letter.Attempts,
		LastError:    letter.LastError,
		FailedAt:     letter.FailedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: dead letter %s already recorded", domain.ErrConflict, letter.DeadLetterID)
		}
		return err
	}
	return nil
}

func (r *deadLetterRepository) ListRecent(ctx context.Context, limit int) ([]ports.DeadLetter, error) {
	var rows []deadLetterModel
	if err := r.db.WithContext(ctx).Order("failed_at desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ports.DeadLetter, 0, len(rows))
	for _, row := range rows {
		out = append(out, ports.DeadLetter{
			DeadLetterID: row.DeadLetterID, EventType: row.EventType, IssueID: row.IssueID,
			PartitionKey: row.PartitionKey, Payload: []byte(row.Payload), Attempts: row.Attempts,
			LastError: row.LastError, FailedAt: row.FailedAt,
		})
	}
	return out, nil
}
