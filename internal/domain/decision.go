package domain

import "time"

// Decision is owned by exactly one user. OwnerID is set at creation and never
// changes.
type Decision struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	IsActive    bool      `json:"is_active"`
}

// DecisionPatch lists the mutable decision fields; nil means unchanged.
// Description may be cleared with an explicit null.
type DecisionPatch struct {
	Title       *string          `json:"title,omitempty"`
	Description Nullable[string] `json:"description"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p DecisionPatch) Empty() bool {
	return p.Title == nil && !p.Description.Set && p.IsActive == nil
}

// Option belongs to a decision and carries no owner of its own.
type Option struct {
	ID         string    `json:"id"`
	DecisionID string    `json:"decision_id"`
	OptionText string    `json:"option_text"`
	Rating     *int      `json:"rating"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// OptionPatch lists the mutable option fields; nil means unchanged.
// Rating may be cleared with an explicit null.
type OptionPatch struct {
	OptionText *string       `json:"option_text,omitempty"`
	Rating     Nullable[int] `json:"rating"`
}

// Empty reports whether the patch changes nothing.
func (p OptionPatch) Empty() bool {
	return p.OptionText == nil && !p.Rating.Set
}

const (
	MinRating = 1
	MaxRating = 5
)

// ValidRating accepts an absent rating or one within [MinRating, MaxRating].
func ValidRating(rating *int) bool {
	return rating == nil || (*rating >= MinRating && *rating <= MaxRating)
}

// Stats aggregates row counts for the admin dashboard.
type Stats struct {
	TotalUsers     int64 `json:"total_users"`
	TotalAdmins    int64 `json:"total_admins"`
	TotalDecisions int64 `json:"total_decisions"`
	TotalOptions   int64 `json:"total_options"`
}
