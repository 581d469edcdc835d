package store

import (
	"sort"

	"feedstore/pkg/logger"
	"feedstore/pkg/models"
)

// SetMe records the locally-authenticated user. The contact set excludes
// "me" by construction: any stale entry for the id is purged here, and
// AddContactID ignores it afterward.
func (s *Store) SetMe(u *models.User) {
	if u == nil || u.ID == "" {
		return
	}
	s.me = u
	delete(s.contacts, u.ID)
	s.AddUser(u)
	s.markDirty(kindMe)
}

// Me returns the locally-authenticated user, nil before SetMe.
func (s *Store) Me() *models.User {
	return s.me
}

func (s *Store) ListenToMe(cb func(*models.User)) Token {
	return s.meColl.add(cb)
}

func (s *Store) RemoveMeListener(tok Token) { s.meColl.remove(tok) }

// AddContactID adds id to the contact set. Adding the authenticated user's
// own id is silently ignored.
func (s *Store) AddContactID(id string) {
	if id == "" {
		return
	}
	if s.me != nil && s.me.ID == id {
		return
	}
	s.contacts[id] = struct{}{}
}

// RemoveContactID removes id from the contact set; absent ids are a no-op.
func (s *Store) RemoveContactID(id string) {
	delete(s.contacts, id)
}

// IsMyContact reports contact membership. An empty id is a caller bug and
// returns ErrInvalidContactID rather than false.
func (s *Store) IsMyContact(id string) (bool, error) {
	if id == "" {
		return false, ErrInvalidContactID
	}
	_, ok := s.contacts[id]
	return ok, nil
}

// ContactIDs returns the contact set sorted lexicographically.
func (s *Store) ContactIDs() []string {
	out := make([]string, 0, len(s.contacts))
	for id := range s.contacts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SetFeatureFlags replaces the flag map.
func (s *Store) SetFeatureFlags(flags map[string]bool) {
	s.flags = make(map[string]bool, len(flags))
	for k, v := range flags {
		s.flags[k] = v
	}
}

// FeatureFlag returns the flag value; unrecognized names are false.
func (s *Store) FeatureFlag(name string) bool {
	return s.flags[name]
}

// StoreMeResult atomically ingests a self-profile payload: self user,
// contact ids (self filtered out), groups, feature flags, and pending
// contact requests, in one transaction.
func (s *Store) StoreMeResult(mr *models.MeResponse) error {
	if mr == nil || mr.User == nil {
		logger.Warn("me_result_empty")
		return nil
	}
	return s.Transaction(func() error {
		s.SetMe(mr.User)
		for _, id := range mr.ContactIDs {
			s.AddContactID(id)
		}
		for _, g := range mr.Groups {
			s.AddGroup(g)
		}
		s.SetFeatureFlags(mr.FeatureFlags)
		for _, r := range mr.ContactRequests {
			s.AddContactRequest(r)
		}
		return nil
	})
}
