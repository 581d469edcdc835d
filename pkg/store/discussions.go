package store

import (
	"fmt"
	"sort"

	"feedstore/pkg/models"
	"feedstore/pkg/utils"
)

type deletedMsgEntry struct {
	tok Token
	fn  func(did, messageID string)
}

// AddDiscussion upserts the canonical discussion record. Equality uses the
// version-aware EquivalentTo predicate, so redundant retransmissions of an
// unchanged discussion never re-notify. On change, an existing response for
// the id has its embedded discussion replaced in the same operation.
func (s *Store) AddDiscussion(d *models.Discussion) {
	if d == nil || d.ID == "" {
		return
	}
	if existing, ok := s.discussions[d.ID]; ok && existing.EquivalentTo(d) {
		suppressed.WithLabelValues(kindDiscussions).Inc()
		return
	}
	s.discussions[d.ID] = d
	upserts.WithLabelValues(kindDiscussions).Inc()
	entities.WithLabelValues(kindDiscussions).Set(float64(len(s.discussions)))
	s.discByID.notify(d.ID, d)
	s.markDirty(kindDiscussions)

	if dr, ok := s.drs[d.ID]; ok {
		dr.Discussion = d
		s.drByID.notify(d.ID, dr)
		s.markDirty(kindDRs)
	}
}

// DiscussionByID returns the canonical record or nil.
func (s *Store) DiscussionByID(id string) *models.Discussion {
	return s.discussions[id]
}

func (s *Store) Discussions() []*models.Discussion {
	out := make([]*models.Discussion, 0, len(s.discussions))
	for _, d := range s.discussions {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListenToDiscussion(id string, cb func(*models.Discussion)) Token {
	return s.discByID.add(id, cb)
}

func (s *Store) ListenToDiscussions(cb func([]*models.Discussion)) Token {
	return s.discColl.add(cb)
}

func (s *Store) RemoveDiscussionListener(id string, tok Token) { s.discByID.remove(id, tok) }
func (s *Store) RemoveDiscussionsListener(tok Token)           { s.discColl.remove(tok) }

// AddDiscussionResponse upserts a full response. The embedded discussion
// becomes the canonical record for its id, keeping the two views of the
// same object graph in sync. A retransmission carrying an equivalent
// discussion and an identical message array is a silent no-op, matching
// AddDiscussion's suppression. The IDs listener fires only when the id is
// new to the store, never on in-place updates.
func (s *Store) AddDiscussionResponse(dr *models.DiscussionResponse) {
	if dr == nil || dr.ID() == "" {
		return
	}
	id := dr.ID()
	existing, existed := s.drs[id]
	if existed && existing.Discussion.EquivalentTo(dr.Discussion) && sameMessages(existing.Messages, dr.Messages) {
		suppressed.WithLabelValues(kindDRs).Inc()
		return
	}
	s.drs[id] = dr
	s.discussions[id] = dr.Discussion
	upserts.WithLabelValues(kindDRs).Inc()
	entities.WithLabelValues(kindDRs).Set(float64(len(s.drs)))

	s.discByID.notify(id, dr.Discussion)
	s.drByID.notify(id, dr)
	s.markDirty(kindDiscussions)
	s.markDirty(kindDRs)
	if !existed {
		s.markDirty(kindDRIDs)
	}
}

// AddShallowDiscussionResponse expands participant ids into hydrated users
// via the store's lookup, substituting a missing-user placeholder for every
// unresolvable id, then keeps the resulting full response.
func (s *Store) AddShallowDiscussionResponse(sdr *models.ShallowDiscussionResponse) {
	if sdr == nil || sdr.Discussion == nil || sdr.Discussion.ID == "" {
		return
	}
	users := make([]*models.User, 0, len(sdr.UserIDs))
	for _, uid := range sdr.UserIDs {
		users = append(users, s.GetUserByID(uid))
	}
	s.AddDiscussionResponse(&models.DiscussionResponse{
		Discussion: sdr.Discussion,
		Messages:   sortMessages(sdr.Messages),
		Users:      users,
	})
}

// DiscussionResponse returns the stored response for id, or nil.
func (s *Store) DiscussionResponse(id string) *models.DiscussionResponse {
	return s.drs[id]
}

// DiscussionResponses returns all responses, id-sorted.
func (s *Store) DiscussionResponses() []*models.DiscussionResponse {
	out := make([]*models.DiscussionResponse, 0, len(s.drs))
	for _, dr := range s.drs {
		out = append(out, dr)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// DiscussionResponseIDs returns stored response ids, lexicographically.
func (s *Store) DiscussionResponseIDs() []string {
	out := make([]string, 0, len(s.drs))
	for id := range s.drs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) ListenToDR(id string, cb func(*models.DiscussionResponse)) Token {
	return s.drByID.add(id, cb)
}

func (s *Store) ListenToDRs(cb func([]*models.DiscussionResponse)) Token {
	return s.drColl.add(cb)
}

// ListenToDRIDs registers an ids-only listener. It is invoked immediately
// with the current id set, then again only when a new id is first inserted
// — in-place updates stay silent, so UI code can tell membership changes
// from content changes without diffing arrays.
func (s *Store) ListenToDRIDs(cb func([]string)) Token {
	tok := s.drIDColl.add(cb)
	invoke(cb, s.DiscussionResponseIDs())
	return tok
}

func (s *Store) RemoveDRListener(id string, tok Token) { s.drByID.remove(id, tok) }
func (s *Store) RemoveDRsListener(tok Token)           { s.drColl.remove(tok) }
func (s *Store) RemoveDRIDsListener(tok Token)         { s.drIDColl.remove(tok) }

// NotifyDRs re-broadcasts the current response list to collection
// listeners. The orchestrator uses it after integrating staged incoming
// items, where the entities were stored earlier without a visible-feed
// change.
func (s *Store) NotifyDRs() {
	s.markDirty(kindDRs)
}

// AppendMessage inserts m into its owning response preserving chronological
// order by CreatedTS regardless of arrival order. A message with an id
// already present replaces that record in place (the edit path). When
// updatedDiscussion is non-nil the discussion side updates in the same
// call. Returns ErrDiscussionNotFound when no response exists for m.DID.
func (s *Store) AppendMessage(m *models.Message, updatedDiscussion *models.Discussion) error {
	if m == nil || m.DID == "" {
		return fmt.Errorf("append message: %w", ErrDiscussionNotFound)
	}
	dr, ok := s.drs[m.DID]
	if !ok {
		return fmt.Errorf("append message %s: %w", m.DID, ErrDiscussionNotFound)
	}

	replaced := false
	for i, ex := range dr.Messages {
		if ex.ID == m.ID {
			dr.Messages[i] = m
			replaced = true
			break
		}
	}
	if !replaced {
		dr.Messages = insertChronological(dr.Messages, m)
	}

	if updatedDiscussion != nil {
		s.AddDiscussion(updatedDiscussion)
	}
	s.drByID.notify(m.DID, dr)
	s.markDirty(kindDRs)
	return nil
}

// DeleteMessage removes the message from its response's array. Deleting an
// id that is not present (or a discussion with no response) is a no-op.
// Dedicated per-discussion deleted-message listeners are notified with
// (did, messageID); the general response listeners fire only when a record
// was actually removed.
func (s *Store) DeleteMessage(did, messageID string) {
	dr, ok := s.drs[did]
	if !ok {
		return
	}
	for i, m := range dr.Messages {
		if m.ID == messageID {
			dr.Messages = append(dr.Messages[:i], dr.Messages[i+1:]...)
			s.notifyDeletedMessage(did, messageID)
			s.drByID.notify(did, dr)
			s.markDirty(kindDRs)
			return
		}
	}
}

// ListenToDeletedMessages registers a per-discussion listener for message
// removals, distinct from the general response listeners.
func (s *Store) ListenToDeletedMessages(did string, cb func(did, messageID string)) Token {
	tok := Token(utils.GenToken())
	s.deletedMsg[did] = append(s.deletedMsg[did], deletedMsgEntry{tok: tok, fn: cb})
	return tok
}

func (s *Store) RemoveDeletedMessagesListener(did string, tok Token) {
	for i, e := range s.deletedMsg[did] {
		if e.tok == tok {
			s.deletedMsg[did] = append(s.deletedMsg[did][:i], s.deletedMsg[did][i+1:]...)
			return
		}
	}
}

func (s *Store) notifyDeletedMessage(did, messageID string) {
	for _, e := range append([]deletedMsgEntry(nil), s.deletedMsg[did]...) {
		func() {
			defer recoverListener()
			e.fn(did, messageID)
			notifications.Inc()
		}()
	}
}

// insertChronological inserts m keeping ascending CreatedTS order, stable
// for equal timestamps (the new record lands after existing peers).
func insertChronological(msgs []*models.Message, m *models.Message) []*models.Message {
	i := sort.Search(len(msgs), func(i int) bool {
		return msgs[i].CreatedTS > m.CreatedTS
	})
	msgs = append(msgs, nil)
	copy(msgs[i+1:], msgs[i:])
	msgs[i] = m
	return msgs
}

func sameMessages(a, b []*models.Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func sortMessages(msgs []*models.Message) []*models.Message {
	out := append([]*models.Message(nil), msgs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedTS < out[j].CreatedTS })
	return out
}
