package postgres

import (
	"github.com/melenae/task-tracker-app/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Issues       ports.IssueStore
	References   ports.ReferenceResolver
	DeadLetters  ports.DeadLetterRepository
	InboundDedup ports.InboundDeduper
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Issues:       &issueRepository{db: db},
		References:   &referenceRepository{db: db},
		DeadLetters:  &deadLetterRepository{db: db},
		InboundDedup: &inboundDedupRepository{db: db},
	}
}
