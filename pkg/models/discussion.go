package models

type Discussion struct {
	ID      string `json:"id"`
	GroupID string `json:"group_id,omitempty"`
	Title   string `json:"title,omitempty"`
	// CreatedBy is the author of the seed post.
	CreatedBy  string `json:"created_by,omitempty"`
	LocationID string `json:"location_id,omitempty"`
	// Members is the full participant set; ordering carries no meaning.
	Members []string `json:"members,omitempty"`
	// ActiveMembers is the subset currently "in" the conversation.
	ActiveMembers []string `json:"active_members,omitempty"`
	// ArchivedUIDs lists users who hid this discussion from their feed.
	ArchivedUIDs []string `json:"archived_uids,omitempty"`
	// SeenAt maps user id to the last-seen timestamp (ns).
	SeenAt map[string]int64 `json:"seen_at,omitempty"`
	// FirstMessageID/LatestMessageID mark whether the thread has any reply
	// beyond its seed post.
	FirstMessageID  string `json:"first_message,omitempty"`
	LatestMessageID string `json:"latest_message,omitempty"`
	// LatestActivityTS (ns)
	LatestActivityTS int64 `json:"latest_activity_ts,omitempty"`
	// Version is the logical clock used for equivalence checks; a server
	// bump accompanies every meaningful change.
	Version int64 `json:"version,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
}

// EquivalentTo reports whether o carries the same logical state as d,
// comparing the version clock plus the fields the feed surface renders.
// Redundant retransmissions of an unchanged discussion compare equivalent
// and must not re-notify listeners. The rest of the engine treats "did this
// change" as exactly this one call.
func (d *Discussion) EquivalentTo(o *Discussion) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.ID != o.ID || d.Version != o.Version {
		return false
	}
	if d.GroupID != o.GroupID || d.Title != o.Title || d.LocationID != o.LocationID {
		return false
	}
	if d.FirstMessageID != o.FirstMessageID || d.LatestMessageID != o.LatestMessageID {
		return false
	}
	if d.LatestActivityTS != o.LatestActivityTS {
		return false
	}
	if !sameStrings(d.Members, o.Members) || !sameStrings(d.ActiveMembers, o.ActiveMembers) || !sameStrings(d.ArchivedUIDs, o.ArchivedUIDs) {
		return false
	}
	if len(d.SeenAt) != len(o.SeenAt) {
		return false
	}
	for k, v := range d.SeenAt {
		if o.SeenAt[k] != v {
			return false
		}
	}
	return true
}

// ActiveFor reports feed eligibility: uid is an active member and the
// thread has at least one reply beyond the seed post.
func (d *Discussion) ActiveFor(uid string) bool {
	if d == nil {
		return false
	}
	return containsString(d.ActiveMembers, uid) && d.LatestMessageID != d.FirstMessageID
}

// ArchivedFor reports whether uid hid this discussion.
func (d *Discussion) ArchivedFor(uid string) bool {
	return d != nil && containsString(d.ArchivedUIDs, uid)
}

// HasMember reports whether uid participates in the discussion.
func (d *Discussion) HasMember(uid string) bool {
	return d != nil && containsString(d.Members, uid)
}

// SeenBy returns uid's last-seen timestamp, zero when never seen.
func (d *Discussion) SeenBy(uid string) int64 {
	if d == nil {
		return 0
	}
	return d.SeenAt[uid]
}
