package domain

// Identity is the authenticated caller behind an API request or device connection
type Identity struct {
	UserID     string
	BusinessID string
}
