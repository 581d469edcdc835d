package store

import (
	"sort"

	"feedstore/pkg/models"
)

// AddUser upserts a user by id. A nil user, or one structurally equal to
// the stored record, is a silent no-op and does not notify.
func (s *Store) AddUser(u *models.User) {
	if u == nil || u.ID == "" {
		return
	}
	if existing, ok := s.users[u.ID]; ok && existing.Equal(u) {
		suppressed.WithLabelValues(kindUsers).Inc()
		return
	}
	s.users[u.ID] = u
	upserts.WithLabelValues(kindUsers).Inc()
	entities.WithLabelValues(kindUsers).Set(float64(len(s.users)))
	s.userByID.notify(u.ID, u)
	s.markDirty(kindUsers)
}

// UserByID returns the stored user or nil.
func (s *Store) UserByID(id string) *models.User {
	return s.users[id]
}

// GetUserByID resolves id to a stored user, substituting a missing-user
// placeholder (fresh unique id, "[deleted]" display name) when unknown. The
// placeholder is not retained.
func (s *Store) GetUserByID(id string) *models.User {
	if u, ok := s.users[id]; ok {
		return u
	}
	return models.PlaceholderUser()
}

// Users returns all users, id-sorted for stable iteration.
func (s *Store) Users() []*models.User {
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListenToUser(id string, cb func(*models.User)) Token {
	return s.userByID.add(id, cb)
}

func (s *Store) ListenToUsers(cb func([]*models.User)) Token {
	return s.userColl.add(cb)
}

func (s *Store) RemoveUserListener(id string, tok Token) { s.userByID.remove(id, tok) }
func (s *Store) RemoveUsersListener(tok Token)           { s.userColl.remove(tok) }

// AddGroup upserts a group; same suppression rules as AddUser.
func (s *Store) AddGroup(g *models.Group) {
	if g == nil || g.ID == "" {
		return
	}
	if existing, ok := s.groups[g.ID]; ok && existing.Equal(g) {
		suppressed.WithLabelValues(kindGroups).Inc()
		return
	}
	s.groups[g.ID] = g
	upserts.WithLabelValues(kindGroups).Inc()
	entities.WithLabelValues(kindGroups).Set(float64(len(s.groups)))
	s.groupByID.notify(g.ID, g)
	s.markDirty(kindGroups)
}

func (s *Store) GroupByID(id string) *models.Group {
	return s.groups[id]
}

func (s *Store) Groups() []*models.Group {
	out := make([]*models.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListenToGroup(id string, cb func(*models.Group)) Token {
	return s.groupByID.add(id, cb)
}

func (s *Store) ListenToGroups(cb func([]*models.Group)) Token {
	return s.groupColl.add(cb)
}

func (s *Store) RemoveGroupListener(id string, tok Token) { s.groupByID.remove(id, tok) }
func (s *Store) RemoveGroupsListener(tok Token)           { s.groupColl.remove(tok) }

// AddFeedItem upserts a feed item; same suppression rules as AddUser.
func (s *Store) AddFeedItem(f *models.FeedItem) {
	if f == nil || f.ID == "" {
		return
	}
	if existing, ok := s.feedItems[f.ID]; ok && existing.Equal(f) {
		suppressed.WithLabelValues(kindFeedItems).Inc()
		return
	}
	s.feedItems[f.ID] = f
	upserts.WithLabelValues(kindFeedItems).Inc()
	entities.WithLabelValues(kindFeedItems).Set(float64(len(s.feedItems)))
	s.itemByID.notify(f.ID, f)
	s.markDirty(kindFeedItems)
}

func (s *Store) FeedItemByID(id string) *models.FeedItem {
	return s.feedItems[id]
}

// FeedItems returns all items newest-first by creation time.
func (s *Store) FeedItems() []*models.FeedItem {
	out := make([]*models.FeedItem, 0, len(s.feedItems))
	for _, f := range s.feedItems {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedTS != out[j].CreatedTS {
			return out[i].CreatedTS > out[j].CreatedTS
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FeedItemIDs returns ids sorted lexicographically for stable iteration.
func (s *Store) FeedItemIDs() []string {
	out := make([]string, 0, len(s.feedItems))
	for id := range s.feedItems {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// NotifyFeedItems re-broadcasts the current item list to collection
// listeners. The orchestrator uses it after integrating staged incoming
// items, where the entities were stored earlier without a visible-feed
// change.
func (s *Store) NotifyFeedItems() {
	s.markDirty(kindFeedItems)
}

func (s *Store) ListenToFeedItem(id string, cb func(*models.FeedItem)) Token {
	return s.itemByID.add(id, cb)
}

func (s *Store) ListenToFeedItems(cb func([]*models.FeedItem)) Token {
	return s.itemColl.add(cb)
}

func (s *Store) RemoveFeedItemListener(id string, tok Token) { s.itemByID.remove(id, tok) }
func (s *Store) RemoveFeedItemsListener(tok Token)           { s.itemColl.remove(tok) }

// AddInviteLink upserts an invite link; same suppression rules as AddUser.
func (s *Store) AddInviteLink(l *models.InviteLink) {
	if l == nil || l.ID == "" {
		return
	}
	if existing, ok := s.inviteLinks[l.ID]; ok && existing.Equal(l) {
		suppressed.WithLabelValues(kindInviteLinks).Inc()
		return
	}
	s.inviteLinks[l.ID] = l
	upserts.WithLabelValues(kindInviteLinks).Inc()
	entities.WithLabelValues(kindInviteLinks).Set(float64(len(s.inviteLinks)))
	s.markDirty(kindInviteLinks)
}

func (s *Store) InviteLinkByID(id string) *models.InviteLink {
	return s.inviteLinks[id]
}

func (s *Store) InviteLinks() []*models.InviteLink {
	out := make([]*models.InviteLink, 0, len(s.inviteLinks))
	for _, l := range s.inviteLinks {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListenToInviteLinks(cb func([]*models.InviteLink)) Token {
	return s.linkColl.add(cb)
}

func (s *Store) RemoveInviteLinksListener(tok Token) { s.linkColl.remove(tok) }

// AddContactRequest upserts a pending contact request.
func (s *Store) AddContactRequest(r *models.ContactRequest) {
	if r == nil || r.ID == "" {
		return
	}
	if existing, ok := s.contactRequests[r.ID]; ok && existing.Equal(r) {
		suppressed.WithLabelValues(kindContactRequests).Inc()
		return
	}
	s.contactRequests[r.ID] = r
	upserts.WithLabelValues(kindContactRequests).Inc()
	entities.WithLabelValues(kindContactRequests).Set(float64(len(s.contactRequests)))
	s.markDirty(kindContactRequests)
}

func (s *Store) ContactRequestByID(id string) *models.ContactRequest {
	return s.contactRequests[id]
}

func (s *Store) ContactRequests() []*models.ContactRequest {
	out := make([]*models.ContactRequest, 0, len(s.contactRequests))
	for _, r := range s.contactRequests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListenToContactRequests(cb func([]*models.ContactRequest)) Token {
	return s.reqColl.add(cb)
}

func (s *Store) RemoveContactRequestsListener(tok Token) { s.reqColl.remove(tok) }
