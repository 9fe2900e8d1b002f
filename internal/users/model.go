package users

import "time"

// User is an account created from a Google identity.
type User struct {
	ID        string    `json:"id"`
	GoogleID  string    `json:"googleId"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture"`
	IsPremium bool      `json:"isPremium"`
	JoinedAt  time.Time `json:"joinedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IDForGoogle derives the stable account ID for a Google subject.
func IDForGoogle(googleID string) string {
	return "google:" + googleID
}
