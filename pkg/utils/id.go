package utils

import "github.com/google/uuid"

// GenUserID returns a fresh user id, used for missing-user placeholders.
func GenUserID() string {
	return "u_" + uuid.NewString()
}

// GenMessageID returns a fresh message id for locally composed messages.
func GenMessageID() string {
	return "m_" + uuid.NewString()
}

// GenFeedItemID returns a fresh feed item id for locally synthesized items.
func GenFeedItemID() string {
	return "f_" + uuid.NewString()
}

// GenToken returns an opaque listener handle.
func GenToken() string {
	return uuid.NewString()
}
