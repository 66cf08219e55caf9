package service

// AuthResponse is returned by register and login.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
	Email        string `json:"email"`
	Role         string `json:"role"`
}

// RefreshResponse carries a rotated token pair.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// MeResponse is the caller's profile.
type MeResponse struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// CreateDecisionInput is the body of POST /decisions/.
type CreateDecisionInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// CreateOptionInput is the body of POST /options/.
type CreateOptionInput struct {
	DecisionID string `json:"decision_id"`
	OptionText string `json:"option_text"`
	Rating     *int   `json:"rating"`
}
