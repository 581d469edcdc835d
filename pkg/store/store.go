// Package store holds the client-resident entity store backing the
// offline-first feed and discussion surfaces. It caches server-fetched
// entities, suppresses redundant update notifications, and fans out batched
// change callbacks.
//
// All mutation goes through Store methods; no component reads the backing
// maps directly. The store is designed for a single mutating goroutine (the
// UI event loop): mutating calls are synchronous and complete fully before
// returning, so a listener invoked synchronously observes fully-consistent
// state.
package store

import (
	"feedstore/pkg/models"
)

// dirty-kind keys used to coalesce collection notifications in transactions
const (
	kindUsers           = "users"
	kindGroups          = "groups"
	kindDiscussions     = "discussions"
	kindFeedItems       = "feed_items"
	kindInviteLinks     = "invite_links"
	kindContactRequests = "contact_requests"
	kindDRs             = "drs"
	kindDRIDs           = "dr_ids"
	kindMe              = "me"
)

// flushOrder fixes collection notification ordering after a transaction.
var flushOrder = []string{
	kindUsers, kindGroups, kindDiscussions, kindFeedItems,
	kindInviteLinks, kindContactRequests, kindDRs, kindDRIDs, kindMe,
}

// Store is the single source of truth for cached entities. Construct with
// New; never share one instance across independent engines.
type Store struct {
	users           map[string]*models.User
	groups          map[string]*models.Group
	discussions     map[string]*models.Discussion
	feedItems       map[string]*models.FeedItem
	inviteLinks     map[string]*models.InviteLink
	contactRequests map[string]*models.ContactRequest
	drs             map[string]*models.DiscussionResponse

	me       *models.User
	contacts map[string]struct{}
	flags    map[string]bool

	userByID  keyedListeners[*models.User]
	userColl  listeners[[]*models.User]
	groupByID keyedListeners[*models.Group]
	groupColl listeners[[]*models.Group]
	discByID  keyedListeners[*models.Discussion]
	discColl  listeners[[]*models.Discussion]
	itemByID  keyedListeners[*models.FeedItem]
	itemColl  listeners[[]*models.FeedItem]
	linkColl  listeners[[]*models.InviteLink]
	reqColl   listeners[[]*models.ContactRequest]
	drByID    keyedListeners[*models.DiscussionResponse]
	drColl    listeners[[]*models.DiscussionResponse]
	drIDColl  listeners[[]string]
	meColl    listeners[*models.User]

	deletedMsg map[string][]deletedMsgEntry

	txDepth int
	pending map[string]bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:           make(map[string]*models.User),
		groups:          make(map[string]*models.Group),
		discussions:     make(map[string]*models.Discussion),
		feedItems:       make(map[string]*models.FeedItem),
		inviteLinks:     make(map[string]*models.InviteLink),
		contactRequests: make(map[string]*models.ContactRequest),
		drs:             make(map[string]*models.DiscussionResponse),
		contacts:        make(map[string]struct{}),
		flags:           make(map[string]bool),
		deletedMsg:      make(map[string][]deletedMsgEntry),
	}
}

// Transaction executes fn synchronously. Every mutation inside applies
// immediately (reads inside see up-to-date values), but collection-level
// callbacks are deferred and coalesced: each distinct listener runs at most
// once, after fn returns, reflecting final state. Per-id listeners still
// fire only for entities that actually changed.
//
// If fn returns an error or panics, the batching flag is reset and the
// coalesced notifications for the partial work are discarded; the error (or
// panic) propagates to the caller. Nested transactions join the outer batch.
func (s *Store) Transaction(fn func() error) error {
	if s.txDepth > 0 {
		s.txDepth++
		defer func() { s.txDepth-- }()
		return fn()
	}

	s.txDepth = 1
	if s.pending == nil {
		s.pending = make(map[string]bool)
	}
	completed := false
	defer func() {
		dirty := s.pending
		s.pending = nil
		s.txDepth = 0
		if !completed {
			return
		}
		transactions.Inc()
		for _, k := range flushOrder {
			if dirty[k] {
				s.notifyKind(k)
			}
		}
	}()

	if err := fn(); err != nil {
		return err
	}
	completed = true
	return nil
}

// markDirty coalesces a collection notification inside a transaction, or
// delivers it immediately outside one.
func (s *Store) markDirty(kind string) {
	if s.txDepth > 0 {
		s.pending[kind] = true
		return
	}
	s.notifyKind(kind)
}

func (s *Store) notifyKind(kind string) {
	switch kind {
	case kindUsers:
		s.userColl.notify(s.Users())
	case kindGroups:
		s.groupColl.notify(s.Groups())
	case kindDiscussions:
		s.discColl.notify(s.Discussions())
	case kindFeedItems:
		s.itemColl.notify(s.FeedItems())
	case kindInviteLinks:
		s.linkColl.notify(s.InviteLinks())
	case kindContactRequests:
		s.reqColl.notify(s.ContactRequests())
	case kindDRs:
		s.drColl.notify(s.DiscussionResponses())
	case kindDRIDs:
		s.drIDColl.notify(s.DiscussionResponseIDs())
	case kindMe:
		s.meColl.notify(s.me)
	}
}
