package model

import "time"

// User is an account created on first GitHub login. Its ID is the owner ID
// threaded through every favorites and collections operation.
//
// GitHubID is GitHub's stable numeric account ID; the users table keeps it
// UNIQUE so one GitHub account maps to exactly one User. Email may be empty
// when the account hides it.
type User struct {
	ID        string    `json:"id"`
	GitHubID  int64     `json:"github_id"`
	Login     string    `json:"login"`
	Email     string    `json:"email"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
