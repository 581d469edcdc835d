package models

// DiscussionResponse is the denormalized read-model pairing a discussion
// with its materialized messages and the hydrated participant users.
//
// Invariant: Discussion points at the store's canonical record for this id.
// The store maintains that binding (bidirectional sync); consumers must not
// swap the pointer themselves.
type DiscussionResponse struct {
	Discussion *Discussion `json:"discussion"`
	// Messages is ordered ascending by CreatedTS.
	Messages []*Message `json:"messages,omitempty"`
	Users    []*User    `json:"users,omitempty"`
}

// ID returns the discussion id, empty when the response is hollow.
func (dr *DiscussionResponse) ID() string {
	if dr == nil || dr.Discussion == nil {
		return ""
	}
	return dr.Discussion.ID
}

// UserByID returns the hydrated participant with the given id, nil when absent.
func (dr *DiscussionResponse) UserByID(id string) *User {
	if dr == nil {
		return nil
	}
	for _, u := range dr.Users {
		if u != nil && u.ID == id {
			return u
		}
	}
	return nil
}

// ShallowDiscussionResponse carries participant user ids instead of hydrated
// records; the store expands it via its user lookup before keeping it.
type ShallowDiscussionResponse struct {
	Discussion *Discussion `json:"discussion"`
	Messages   []*Message  `json:"messages,omitempty"`
	UserIDs    []string    `json:"user_ids,omitempty"`
}
