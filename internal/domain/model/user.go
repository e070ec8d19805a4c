package model

import "strconv"

// User is the server-side user record as it travels in REST bodies and in
// user_created frames.
type User struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

// ActivityLabel is the searchable text form of IsActive.
func (u User) ActivityLabel() string {
	if u.IsActive {
		return "active"
	}
	return "inactive"
}

func (u User) IDString() string { return strconv.FormatInt(u.ID, 10) }

// UserInput is the body for create and update calls. Nil pointers are omitted
// so that update only touches provided fields.
type UserInput struct {
	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}
