package models

// Feed item reference kinds. Anything else in a wire payload is malformed
// and skipped by the ranking engine.
const (
	RefDiscussion = "discussion"
	RefGroup      = "group"
	RefContact    = "contact"
)

// FeedItem is a pointer record used by the chronological feed view, distinct
// from the DiscussionResponse-based active-discussions view. It carries
// either a bare RefID or an embedded payload for its ref kind.
type FeedItem struct {
	ID      string `json:"id"`
	RefType string `json:"ref_type"`
	RefID   string `json:"ref_id,omitempty"`
	// Embedded refs; at most one is set, matching RefType.
	Discussion *DiscussionResponse `json:"discussion,omitempty"`
	Group      *Group              `json:"group,omitempty"`
	Contact    *User               `json:"contact,omitempty"`

	CreatedBy  string `json:"created_by,omitempty"`
	LocationID string `json:"location_id,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts"`
	// SeenAt maps user id to the timestamp the item was seen (ns).
	SeenAt map[string]int64 `json:"seen_at,omitempty"`
	// DismissedBy lists users who swiped the item away.
	DismissedBy []string `json:"dismissed_by,omitempty"`
}

// EntityID resolves the id of the referenced entity, preferring the
// embedded payload over the bare RefID. Empty means unresolvable.
func (f *FeedItem) EntityID() string {
	if f == nil {
		return ""
	}
	switch f.RefType {
	case RefDiscussion:
		if id := f.Discussion.ID(); id != "" {
			return id
		}
	case RefGroup:
		if f.Group != nil && f.Group.ID != "" {
			return f.Group.ID
		}
	case RefContact:
		if f.Contact != nil && f.Contact.ID != "" {
			return f.Contact.ID
		}
	default:
		return ""
	}
	return f.RefID
}

// DismissedFor reports whether uid swiped this item away.
func (f *FeedItem) DismissedFor(uid string) bool {
	return f != nil && containsString(f.DismissedBy, uid)
}

// SeenBy returns uid's seen timestamp for the item, zero when never seen.
func (f *FeedItem) SeenBy(uid string) int64 {
	if f == nil {
		return 0
	}
	return f.SeenAt[uid]
}

func (f *FeedItem) Equal(o *FeedItem) bool {
	if f == nil || o == nil {
		return f == o
	}
	if f.ID != o.ID || f.RefType != o.RefType || f.RefID != o.RefID ||
		f.CreatedBy != o.CreatedBy || f.LocationID != o.LocationID || f.CreatedTS != o.CreatedTS {
		return false
	}
	if !sameStrings(f.DismissedBy, o.DismissedBy) {
		return false
	}
	if len(f.SeenAt) != len(o.SeenAt) {
		return false
	}
	for k, v := range f.SeenAt {
		if o.SeenAt[k] != v {
			return false
		}
	}
	// Embedded refs compare by identity of the referenced entity; payload
	// content changes flow through the store's DR/group/user paths.
	return f.Discussion.ID() == o.Discussion.ID()
}
