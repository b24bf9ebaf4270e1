package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/melenae/task-tracker-app/internal/domain"
	"github.com/melenae/task-tracker-app/internal/ports"
	"gorm.io/gorm"
)

type issueRepository struct {
	db *gorm.DB
}

var _ ports.IssueStore = (*issueRepository)(nil)

func (r *issueRepository) GetIssue(ctx context.Context, id int64) (domain.Issue, error) {
	return r.getIssue(r.db.WithContext(ctx), id)
}

func (r *issueRepository) getIssue(tx *gorm.DB, id int64) (domain.Issue, error) {
	var rec issueModel
	if err := tx.Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Issue{}, domain.ErrNotFound
		}
		return domain.Issue{}, err
	}
	return toDomainIssue(rec), nil
}

func (r *issueRepository) CreateIssue(ctx context.Context, params ports.CreateIssueParams) (domain.Issue, error) {
	applicantType, applicantID := applicantColumns(params.Applicant)
	rec := issueModel{
		Name:          params.Name,
		Content:       params.Content,
		Status:        string(params.Status),
		Priority:      string(params.Priority),
		ApplicantType: applicantType,
		ApplicantID:   applicantID,
		ParentID:      params.ParentID,
		SprintID:      params.SprintID,
		CompanyID:     params.CompanyID,
		ServiceID:     params.ServiceID,
		DatabaseID:    params.DatabaseID,
		UserID:        params.UserID,
		SupervisorID:  params.SupervisorID,
		Deadline:      params.Deadline,
		DateCheck:     params.DateCheck,
		DateStartPlan: params.DateStartPlan,
		DateEndPlan:   params.DateEndPlan,
		DateCreate:    params.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isForeignKeyViolation(err) {
			return domain.Issue{}, fmt.Errorf("%w: unknown reference", domain.ErrInvalidInput)
		}
		return domain.Issue{}, err
	}
	return toDomainIssue(rec), nil
}

func (r *issueRepository) UpdateIssue(ctx context.Context, id int64, params ports.UpdateIssueParams) (domain.Issue, error) {
	updates := map[string]any{}
	if params.Name != nil {
		updates["name"] = *params.Name
	}
	if params.Content != nil {
		updates["content"] = *params.Content
	}
	if params.Status != nil {
		updates["status"] = string(*params.Status)
	}
	if params.Priority != nil {
		updates["priority"] = string(*params.Priority)
	}
	if params.Applicant != nil {
		updates["applicant_type"] = params.Applicant.ApplicantType()
		updates["applicant_id"] = params.Applicant.ID
	}
	setIfPresent(updates, "parent_id", params.ParentID)
	setIfPresent(updates, "sprint_id", params.SprintID)
	setIfPresent(updates, "company_id", params.CompanyID)
	setIfPresent(updates, "service_id", params.ServiceID)
	setIfPresent(updates, "database_id", params.DatabaseID)
	setIfPresent(updates, "user_id", params.UserID)
	setIfPresent(updates, "supervisor_id", params.SupervisorID)
	switch {
	case params.ClearDeadline:
		updates["deadline"] = nil
	case params.Deadline != nil:
		updates["deadline"] = *params.Deadline
	}
	if params.DateCheck != nil {
		updates["date_check"] = *params.DateCheck
	}
	if params.DateStartPlan != nil {
		updates["date_start_plan"] = *params.DateStartPlan
	}
	if params.DateEndPlan != nil {
		updates["date_end_plan"] = *params.DateEndPlan
	}
	return r.applyUpdates(ctx, id, updates)
}

func (r *issueRepository) UpdateStatus(ctx context.Context, id int64, status domain.Status) (domain.Issue, error) {
	return r.applyUpdates(ctx, id, map[string]any{"status": string(status)})
}

func (r *issueRepository) applyUpdates(ctx context.Context, id int64, updates map[string]any) (domain.Issue, error) {
	var out domain.Issue
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			res := tx.Model(&issueModel{}).Where("id = ?", id).Updates(updates)
			if res.Error != nil {
				if isForeignKeyViolation(res.Error) {
					return fmt.Errorf("%w: unknown reference", domain.ErrInvalidInput)
				}
				return res.Error
			}
			if res.RowsAffected == 0 {
				return domain.ErrNotFound
			}
		}
		issue, err := r.getIssue(tx, id)
		if err != nil {
			return err
		}
		out = issue
		return nil
	})
	if err != nil {
		return domain.Issue{}, err
	}
	return out, nil
}

func (r *issueRepository) DeleteIssue(ctx context.Context, id int64) (domain.Issue, error) {
	var deleted domain.Issue
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		issue, err := r.getIssue(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&issueModel{}).Error; err != nil {
			return err
		}
		deleted = issue
		return nil
	})
	if err != nil {
		return domain.Issue{}, err
	}
	return deleted, nil
}

func (r *issueRepository) CreateComment(ctx context.Context, params ports.CreateCommentParams) (domain.Comment, error) {
	rec := issueCommentModel{
		IssueID:    params.IssueID,
		UserID:     params.AuthorID,
		Comment:    params.Text,
		DateCreate: params.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isForeignKeyViolation(err) {
			return domain.Comment{}, fmt.Errorf("comment for issue %d: %w", params.IssueID, domain.ErrNotFound)
		}
		return domain.Comment{}, err
	}
	var authorName *string
	if rec.UserID != nil {
		var author userModel
		if err := r.db.WithContext(ctx).Select("id", "name").Where("id = ?", *rec.UserID).Take(&author).Error; err == nil {
			authorName = author.Name
		}
	}
	return toDomainComment(rec, authorName), nil
}

func setIfPresent(updates map[string]any, column string, value *int64) {
	if value != nil {
		updates[column] = *value
	}
}
