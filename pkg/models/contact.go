package models

// InviteLink invites a user into a group.
type InviteLink struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
	URL       string `json:"url,omitempty"`
	CreatedTS int64  `json:"created_ts,omitempty"`
}

func (l *InviteLink) Equal(o *InviteLink) bool {
	if l == nil || o == nil {
		return l == o
	}
	return *l == *o
}

// ContactRequest is a pending request between two users.
type ContactRequest struct {
	ID        string `json:"id"`
	FromID    string `json:"from_id"`
	ToID      string `json:"to_id"`
	Status    string `json:"status,omitempty"`
	CreatedTS int64  `json:"created_ts,omitempty"`
}

func (r *ContactRequest) Equal(o *ContactRequest) bool {
	if r == nil || o == nil {
		return r == o
	}
	return *r == *o
}

// MeResponse is the self-profile payload the store ingests atomically.
type MeResponse struct {
	User            *User             `json:"user"`
	ContactIDs      []string          `json:"contact_ids,omitempty"`
	Groups          []*Group          `json:"groups,omitempty"`
	FeatureFlags    map[string]bool   `json:"feature_flags,omitempty"`
	ContactRequests []*ContactRequest `json:"contact_requests,omitempty"`
}
