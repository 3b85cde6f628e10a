package model

// User identifies a collection owner. Rows are created on the first message
// from an unseen user_id and never deleted by this service.
type User struct {
	UserID    string   `json:"user_id"`
	Username  string   `json:"username"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}
