package models

import (
	"sort"
	"strings"
	"time"
)

// FeedQuery is an immutable filter descriptor applied identically by both
// feed views. Zero value means "everything visible".
type FeedQuery struct {
	ContactID  string `json:"contact_id,omitempty"`
	GroupID    string `json:"group_id,omitempty"`
	LocationID string `json:"location_id,omitempty"`
	// Hidden includes dismissed/archived records.
	Hidden bool `json:"hidden,omitempty"`
}

// Key returns the normalized cache key for this query.
func (q FeedQuery) Key() string {
	parts := []string{
		"c=" + q.ContactID,
		"g=" + q.GroupID,
		"l=" + q.LocationID,
	}
	if q.Hidden {
		parts = append(parts, "h=1")
	}
	sort.Strings(parts)
	return strings.Join(parts, "&")
}

// Feed entry kinds.
const (
	EntryPost = "post"
	EntryItem = "item"
)

// FeedSeparator is a rendering directive attached to a feed entry marking a
// date boundary or a NEW/SEEN boundary.
type FeedSeparator struct {
	Text    string `json:"text"`
	Color   string `json:"color,omitempty"`
	HasLine bool   `json:"has_line,omitempty"`
}

const (
	unseenSeparatorText = "NEW"
	seenSeparatorText   = "SEEN"
)

// NewDateSeparator marks a calendar-day boundary.
func NewDateSeparator(t time.Time) *FeedSeparator {
	return &FeedSeparator{Text: t.Format("Mon, Jan 2"), HasLine: true}
}

// NewUnseenSeparator marks the start of the unseen region of a feed.
func NewUnseenSeparator() *FeedSeparator {
	return &FeedSeparator{Text: unseenSeparatorText, Color: "accent", HasLine: true}
}

// NewSeenSeparator marks the start of the already-seen region.
func NewSeenSeparator() *FeedSeparator {
	return &FeedSeparator{Text: seenSeparatorText, HasLine: true}
}

// IsUnseenMarker reports whether s is the NEW boundary.
func (s *FeedSeparator) IsUnseenMarker() bool {
	return s != nil && s.Text == unseenSeparatorText
}

// IsSeenMarker reports whether s is the SEEN boundary.
func (s *FeedSeparator) IsSeenMarker() bool {
	return s != nil && s.Text == seenSeparatorText
}

// FeedEntry is one ranked row of a computed feed. Exactly one of DR/Item is
// set, matching Type.
type FeedEntry struct {
	Type string `json:"type"`
	// ID of the underlying entity (discussion id for posts, item id for
	// chronological entries).
	ID string `json:"id"`
	// Timestamp (ns) the entry sorts by.
	Timestamp int64 `json:"timestamp"`
	IsSeen    bool  `json:"is_seen"`
	// IsFirstInDate marks the first entry of a calendar day.
	IsFirstInDate bool           `json:"is_first_in_date,omitempty"`
	Separator     *FeedSeparator `json:"separator,omitempty"`

	DR   *DiscussionResponse `json:"dr,omitempty"`
	Item *FeedItem           `json:"item,omitempty"`
}
