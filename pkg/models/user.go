package models

import "feedstore/pkg/utils"

// PlaceholderName is the display name substituted for users whose id
// cannot be resolved locally.
const PlaceholderName = "[deleted]"

type User struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
}

// PlaceholderUser returns a synthetic user record for an unresolvable id.
// Every call yields a fresh unique id so placeholders never collide in maps
// keyed by user id.
func PlaceholderUser() *User {
	return &User{
		ID:   utils.GenUserID(),
		Name: PlaceholderName,
	}
}

// Equal reports shallow structural equality; used to suppress redundant
// upsert notifications.
func (u *User) Equal(o *User) bool {
	if u == nil || o == nil {
		return u == o
	}
	return u.ID == o.ID && u.Name == o.Name && u.AvatarURL == o.AvatarURL && u.CreatedTS == o.CreatedTS
}
