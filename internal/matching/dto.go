// internal/matching/dto.go
package matching

// DTOs for API requests/responses

type RunMatchDTO struct {
	ChatID           string      `json:"chat_id" validate:"required"`
	RequestingUserID int64       `json:"requesting_user_id" validate:"required,gt=0"`
	TripRequest      TripRequest `json:"trip_request" validate:"required"`
}

type RunMatchResponse struct {
	RunID      string         `json:"run_id"`
	ChatID     string         `json:"chat_id"`
	TotalCount int            `json:"total_count"`
	Matches    []*MatchResult `json:"matches"`
}

type ChatMatchesResponse struct {
	ChatID     string         `json:"chat_id"`
	TotalCount int            `json:"total_count"`
	Matches    []*MatchRecord `json:"matches"`
}
