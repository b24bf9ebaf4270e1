package domain

import (
	"fmt"
	"strings"
)

func ParseStatus(v string) (Status, error) {
	s := Status(strings.TrimSpace(v))
	for _, known := range Statuses {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
}

func ParsePriority(v string) (Priority, error) {
	switch p := Priority(strings.TrimSpace(v)); p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, v)
	}
}

// Wire names of the applicant kinds, kept compatible with the external system.
const (
	applicantTypeUser          = "users"
	applicantTypeClientContact = "clientteams"
)

// ApplicantType returns the wire name of the applicant kind.
func (a Applicant) ApplicantType() string {
	switch a.Kind {
	case ApplicantUser:
		return applicantTypeUser
	case ApplicantClientContact:
		return applicantTypeClientContact
	default:
		return ""
	}
}

// ParseApplicant resolves the wire pair (applicant_type, applicant_id).
func ParseApplicant(applicantType string, id int64) (Applicant, error) {
	if id <= 0 {
		return Applicant{}, fmt.Errorf("%w: id must be positive", ErrInvalidApplicant)
	}
	switch strings.ToLower(strings.TrimSpace(applicantType)) {
	case applicantTypeUser, string(ApplicantUser):
		return Applicant{Kind: ApplicantUser, ID: id}, nil
	case applicantTypeClientContact, string(ApplicantClientContact):
		return Applicant{Kind: ApplicantClientContact, ID: id}, nil
	default:
		return Applicant{}, fmt.Errorf("%w: unknown type %q", ErrInvalidApplicant, applicantType)
	}
}

// ReferenceKind maps the applicant to the reference kind used for lookups.
func (a Applicant) ReferenceKind() ReferenceKind {
	if a.Kind == ApplicantClientContact {
		return ReferenceClientContact
	}
	return ReferenceUser
}

func ValidateIssueName(v string) error {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(trimmed) > 255 {
		return fmt.Errorf("%w: name must be <= 255 chars", ErrInvalidInput)
	}
	return nil
}
