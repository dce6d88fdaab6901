package models

// User is the caller identity asserted by the identity provider.
type User struct {
	ID       string `json:"user_id"`
	Username string `json:"username"`
	PhotoURL string `json:"photo_url,omitempty"`
}
