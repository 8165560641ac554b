package models

import "fmt"

// CompanyType classifies a victim company.
type CompanyType string

const (
	CompanyTypePublic     CompanyType = "public"
	CompanyTypePrivate    CompanyType = "private"
	CompanyTypeGovernment CompanyType = "government"
	CompanyTypeUnknown    CompanyType = "unknown"
)

// ParseCompanyType validates a raw string against the known company types.
// An empty string is rejected; callers treat absence separately.
func ParseCompanyType(s string) (CompanyType, error) {
	switch CompanyType(s) {
	case CompanyTypePublic, CompanyTypePrivate, CompanyTypeGovernment, CompanyTypeUnknown:
		return CompanyType(s), nil
	}
	return "", fmt.Errorf("%w: invalid company type %q", ErrValidation, s)
}

// ReviewStatus is the two-state review workflow of a victim record.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusReviewed ReviewStatus = "reviewed"
)

// ParseReviewStatus validates a raw string against the known review statuses.
func ParseReviewStatus(s string) (ReviewStatus, error) {
	switch ReviewStatus(s) {
	case ReviewStatusPending, ReviewStatusReviewed:
		return ReviewStatus(s), nil
	}
	return "", fmt.Errorf("%w: invalid review status %q", ErrValidation, s)
}

// LifecycleStatus is the active/flagged/deleted state of a victim record.
// It is orthogonal to ReviewStatus: a record may be reviewed and flagged
// at the same time.
type LifecycleStatus string

const (
	LifecycleActive  LifecycleStatus = "active"
	LifecycleFlagged LifecycleStatus = "flagged"
	LifecycleDeleted LifecycleStatus = "deleted"
)

// Confidence is the label assigned by AI classification. The empty string
// means no classification has run yet.
type Confidence string

const (
	ConfidenceUnset  Confidence = ""
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TriState models a checked/unchecked boolean where "not yet checked" is
// structurally distinct from "checked false".
type TriState string

const (
	TriUnknown TriState = "unknown"
	TriYes     TriState = "yes"
	TriNo      TriState = "no"
)

// TriFromBool converts a checked boolean into its tri-state value.
func TriFromBool(b bool) TriState {
	if b {
		return TriYes
	}
	return TriNo
}

// TriFromBoolPtr converts an optional boolean, mapping nil to TriUnknown.
func TriFromBoolPtr(b *bool) TriState {
	if b == nil {
		return TriUnknown
	}
	return TriFromBool(*b)
}
