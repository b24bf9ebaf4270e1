package postgres

import "github.com/melenae/task-tracker-app/internal/domain"

func toDomainIssue(m issueModel) domain.Issue {
	issue := domain.Issue{
		ID: m.ID, Name: m.Name, Content: m.Content, Status: domain.Status(m.Status),
		Priority: domain.Priority(m.Priority), ParentID: m.ParentID, SprintID: m.SprintID,
		CompanyID: m.CompanyID, ServiceID: m.ServiceID, DatabaseID: m.DatabaseID, UserID: m.UserID,
		SupervisorID: m.SupervisorID, Deadline: m.Deadline, DateCheck: m.DateCheck,
		DateStartPlan: m.DateStartPlan, DateEndPlan: m.DateEndPlan, TimeDeadLine: m.TimeDeadLine,
		TimeCheck: m.TimeCheck, SLAReaction: m.SLAReaction, SLAExecution: m.SLAExecution,
		SLACheck: m.SLACheck, SLADeadline: m.SLADeadline, DateCreate: m.DateCreate,
	}
	if m.ApplicantType != nil && m.ApplicantID != nil {
		if applicant, err := domain.ParseApplicant(*m.ApplicantType, *m.ApplicantID); err == nil {
			issue.Applicant = &applicant
		}
	}
	return issue
}

func toDomainComment(m issueCommentModel, authorName *string) domain.Comment {
	return domain.Comment{
		ID: m.ID, IssueID: m.IssueID, AuthorID: m.UserID, AuthorName: authorName,
		Text: m.Comment, DateCreate: m.DateCreate,
	}
}

func applicantColumns(a *domain.Applicant) (*string, *int64) {
	if a == nil {
		return nil, nil
	}
	kind, id := a.ApplicantType(), a.ID
	return &kind, &id
}
