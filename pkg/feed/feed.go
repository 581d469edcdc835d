// Package feed computes deduplicated, separator-annotated, seen-aware
// orderings of the social feed. Every function is a deterministic transform
// over snapshots pulled from the store; the package holds no mutable state.
package feed

import (
	"sort"
	"time"

	"feedstore/pkg/logger"
	"feedstore/pkg/models"
)

// SortedActiveEntries filters responses to discussions where userID is an
// active member and the thread has at least one reply, excludes
// archived-for-user discussions unless q.Hidden, applies the query filters
// (AND semantics), flags IsSeen, and sorts descending by latest activity.
// Every returned entry carries Type "post".
func SortedActiveEntries(userID string, q models.FeedQuery, drs []*models.DiscussionResponse) []*models.FeedEntry {
	out := make([]*models.FeedEntry, 0, len(drs))
	for _, dr := range drs {
		d := dr.Discussion
		if d == nil || d.ID == "" {
			continue
		}
		if !d.ActiveFor(userID) {
			continue
		}
		if d.ArchivedFor(userID) && !q.Hidden {
			continue
		}
		if !matchDiscussion(q, d) {
			continue
		}
		out = append(out, &models.FeedEntry{
			Type:      models.EntryPost,
			ID:        d.ID,
			Timestamp: d.LatestActivityTS,
			IsSeen:    SeenDiscussion(userID, d),
			DR:        dr,
		})
	}
	sortEntriesDesc(out)
	return out
}

// SortedChronoEntries produces the chronological feed: dismissed items are
// dropped unless q.Hidden, discussion-backed items need a non-empty message
// array, the query filters apply per ref kind, duplicates collapse by
// (ref type, entity id) keeping the newest copy, and a single walk attaches
// date-boundary separators where the calendar day changes. Records lacking
// a resolvable id or carrying an unknown ref type are skipped, never fatal.
func SortedChronoEntries(userID string, q models.FeedQuery, items []*models.FeedItem) []*models.FeedEntry {
	entries := make([]*models.FeedEntry, 0, len(items))
	for _, f := range items {
		if f == nil || f.ID == "" {
			continue
		}
		eid := f.EntityID()
		if eid == "" {
			logger.Warn("feed_item_skipped", "item", f.ID, "ref_type", f.RefType)
			continue
		}
		if f.DismissedFor(userID) && !q.Hidden {
			continue
		}
		if f.RefType == models.RefDiscussion && (f.Discussion == nil || len(f.Discussion.Messages) == 0) {
			continue
		}
		if !matchItem(q, f) {
			continue
		}
		entries = append(entries, &models.FeedEntry{
			Type:      models.EntryItem,
			ID:        f.ID,
			Timestamp: f.CreatedTS,
			IsSeen:    SeenItem(userID, f),
			Item:      f,
		})
	}

	sortEntriesDesc(entries)

	// after the descending sort, the first copy of a repeated entity is the
	// newest one, so first-wins dedup keeps it
	seen := make(map[string]bool, len(entries))
	deduped := entries[:0]
	for _, e := range entries {
		key := e.Item.RefType + ":" + e.Item.EntityID()
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, e)
	}

	annotateDates(deduped)
	return deduped
}

// annotateDates walks the sorted entries once, marking the first entry of
// each calendar day (local time) and attaching a date separator.
func annotateDates(entries []*models.FeedEntry) {
	var prev time.Time
	for i, e := range entries {
		t := time.Unix(0, e.Timestamp)
		if i == 0 || !sameDay(t, prev) {
			e.IsFirstInDate = true
			e.Separator = models.NewDateSeparator(t)
		}
		prev = t
	}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FullFeed annotates an already-sorted, already-deduplicated feed in place:
// exactly one NEW separator at index 0 when any entry is unseen, and at
// most one SEEN separator immediately after the last unseen entry (at index
// 0 when everything is seen). When both exist, NEW's index is strictly less
// than SEEN's.
func FullFeed(entries []*models.FeedEntry) []*models.FeedEntry {
	if len(entries) == 0 {
		return entries
	}
	last := LastNewIndex(entries)
	if last < 0 {
		entries[0].Separator = models.NewSeenSeparator()
		return entries
	}
	entries[0].Separator = models.NewUnseenSeparator()
	if last+1 < len(entries) {
		entries[last+1].Separator = models.NewSeenSeparator()
	}
	return entries
}

// LastNewIndex returns the highest index with IsSeen false, or -1 when
// every entry is seen.
func LastNewIndex(entries []*models.FeedEntry) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].IsSeen {
			return i
		}
	}
	return -1
}

// SortedSearchEntries ranks search results with the query filters and
// descending activity order, but marks every entry seen: search results are
// not part of the unread-tracking surface.
func SortedSearchEntries(userID string, q models.FeedQuery, drs []*models.DiscussionResponse) []*models.FeedEntry {
	out := make([]*models.FeedEntry, 0, len(drs))
	for _, dr := range drs {
		d := dr.Discussion
		if d == nil || d.ID == "" {
			continue
		}
		if !matchDiscussion(q, d) {
			continue
		}
		out = append(out, &models.FeedEntry{
			Type:      models.EntryPost,
			ID:        d.ID,
			Timestamp: d.LatestActivityTS,
			IsSeen:    true,
			DR:        dr,
		})
	}
	sortEntriesDesc(out)
	return out
}

// SeenDiscussion reports whether uid's last-seen timestamp covers the
// discussion's latest activity.
func SeenDiscussion(uid string, d *models.Discussion) bool {
	return d != nil && d.SeenBy(uid) >= d.LatestActivityTS
}

// SeenItem reports whether uid saw the item after its creation.
func SeenItem(uid string, f *models.FeedItem) bool {
	return f != nil && f.SeenBy(uid) >= f.CreatedTS
}

func sortEntriesDesc(entries []*models.FeedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].ID < entries[j].ID
	})
}

// matchDiscussion applies the query filters to a discussion with AND
// semantics when several are present.
func matchDiscussion(q models.FeedQuery, d *models.Discussion) bool {
	if q.ContactID != "" && !d.HasMember(q.ContactID) {
		return false
	}
	if q.GroupID != "" && d.GroupID != q.GroupID {
		return false
	}
	if q.LocationID != "" && d.LocationID != q.LocationID {
		return false
	}
	return true
}

// matchItem applies the query filters to a feed item, consulting the field
// appropriate to its ref kind.
func matchItem(q models.FeedQuery, f *models.FeedItem) bool {
	if q.ContactID != "" {
		switch f.RefType {
		case models.RefContact:
			if f.EntityID() != q.ContactID {
				return false
			}
		case models.RefDiscussion:
			if f.Discussion == nil || f.Discussion.Discussion == nil || !f.Discussion.Discussion.HasMember(q.ContactID) {
				return false
			}
		default:
			if f.CreatedBy != q.ContactID {
				return false
			}
		}
	}
	if q.GroupID != "" {
		switch f.RefType {
		case models.RefGroup:
			if f.EntityID() != q.GroupID {
				return false
			}
		case models.RefDiscussion:
			if f.Discussion == nil || f.Discussion.Discussion == nil || f.Discussion.Discussion.GroupID != q.GroupID {
				return false
			}
		default:
			return false
		}
	}
	if q.LocationID != "" && f.LocationID != q.LocationID {
		return false
	}
	return true
}
