package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
	"gorm.io/gorm"
)

var referenceTables = map[domain.ReferenceKind]string{
	domain.ReferenceCompany:       "companies",
	domain.ReferenceService:       "services",
	domain.ReferenceDatabase:      "data_bases",
	domain.ReferenceUser:          "users",
	domain.ReferenceClientContact: "client_teams",
	domain.ReferenceSprint:        "sprints",
	domain.ReferenceIssue:         "issues",
}

type referenceRepository struct {
	db *gorm.DB
}

var _ ports.ReferenceResolver = (*referenceRepository)(nil)

func (r *referenceRepository) LookupReference(ctx context.Context, kind domain.ReferenceKind, id int64) (bool, error) {
	table, ok := referenceTables[kind]
	if !ok {
		return false, fmt.Errorf("%w: unknown reference kind %q", domain.ErrInvalidInput, kind)
	}
	var count int64
	if err := r.db.WithContext(ctx).Table(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *referenceRepository) FindUserByEmail(ctx context.Context, email string) (int64, bool, error) {
	var rec userModel
	err := r.db.WithContext(ctx).Select("id").
		Where("lower(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Order("id asc").Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return rec.ID, true, nil
}
