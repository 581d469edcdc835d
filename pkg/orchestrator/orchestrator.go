// Package orchestrator coordinates fetch-or-cache decisions for the feed:
// freshness-windowed refresh, pagination cursors, and a staging area for
// newly-arrived items so an actively-scrolling viewer is not disrupted.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"feedstore/pkg/apiclient"
	"feedstore/pkg/logger"
	"feedstore/pkg/models"
	"feedstore/pkg/store"
	"feedstore/pkg/utils"
)

// ErrStale marks a fetch whose response was superseded by a later fetch for
// the same query and therefore discarded without touching the store.
var ErrStale = errors.New("stale feed response discarded")

// Options tune an Orchestrator.
type Options struct {
	// Freshness is the soft-refresh cache window.
	Freshness time.Duration
	// RPS/Burst bound fetches per query key.
	RPS   float64
	Burst int
	// Defer schedules a function to run after the current call completes;
	// it must hand the function to the goroutine that owns the store. The
	// default spawns a goroutine, which is only safe when nothing else
	// mutates the store concurrently.
	Defer func(func())
}

type cacheEntry struct {
	ids     []string
	fetched time.Time
}

type incomingEntry struct {
	tok store.Token
	fn  func(int)
}

// Orchestrator owns the per-query freshness cache and incoming set. The
// cache is advisory only: it never blocks a hard refresh. A mutex guards
// the cache because the sweeper goroutine evicts entries concurrently.
type Orchestrator struct {
	store   *store.Store
	client  *apiclient.Client
	window  time.Duration
	deferFn func(func())

	mu        sync.Mutex
	cache     map[string]*cacheEntry
	cursors   map[string]string
	seqs      map[string]uint64
	limiters  limiterPool
	incoming  map[string]struct{}
	incomingL []incomingEntry
}

// New builds an orchestrator over s and c.
func New(s *store.Store, c *apiclient.Client, opts Options) *Orchestrator {
	window := opts.Freshness
	if window <= 0 {
		window = 30 * time.Second
	}
	deferFn := opts.Defer
	if deferFn == nil {
		deferFn = func(fn func()) { go fn() }
	}
	return &Orchestrator{
		store:    s,
		client:   c,
		window:   window,
		deferFn:  deferFn,
		cache:    make(map[string]*cacheEntry),
		cursors:  make(map[string]string),
		seqs:     make(map[string]uint64),
		limiters: limiterPool{rps: opts.RPS, burst: opts.Burst},
		incoming: make(map[string]struct{}),
	}
}

// RefreshFeed returns the materialized response list for q. With hard=true
// (the caller default) it always fetches. A soft refresh consults the
// per-query cache first and only fetches when the entry is older than the
// freshness window.
//
// Each fetch carries a per-query sequence number; a response that resolves
// after a later fetch was issued for the same query is discarded with
// ErrStale instead of overwriting fresher state.
func (o *Orchestrator) RefreshFeed(ctx context.Context, q models.FeedQuery, hard bool) ([]*models.DiscussionResponse, error) {
	key := q.Key()

	if !hard {
		if drs, ok := o.cached(key, o.window); ok {
			logger.Debug("feed_cache_hit", "query", key)
			return drs, nil
		}
		o.mu.Lock()
		allowed := o.limiters.get(key).Allow()
		o.mu.Unlock()
		if !allowed {
			if drs, ok := o.cached(key, 0); ok {
				logger.Debug("feed_refresh_throttled", "query", key)
				return drs, nil
			}
		}
	} else {
		o.mu.Lock()
		lim := o.limiters.get(key)
		o.mu.Unlock()
		if err := lim.Wait(ctx); err != nil {
			return nil, err
		}
	}

	seq := o.nextSeq(key)
	resp, err := o.client.GetFeed(ctx, q, "")
	if err != nil {
		return nil, err
	}
	if !o.currentSeq(key, seq) {
		logger.Warn("feed_refresh_stale", "query", key, "seq", seq)
		return nil, ErrStale
	}

	ids, err := o.ProcessFeed(resp)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.cache[key] = &cacheEntry{ids: ids, fetched: time.Now()}
	o.mu.Unlock()

	logger.Info("feed_refreshed", "query", key, "count", len(ids), "hard", hard)
	return o.materialize(ids), nil
}

// LoadBottomFeed resolves the pagination cursor for q (the last-seen id,
// asking the API when none is stored yet) and appends the next page. The
// cursor advances using the page's own record kind: item ids when the page
// came in the items shape, discussion ids otherwise.
func (o *Orchestrator) LoadBottomFeed(ctx context.Context, q models.FeedQuery) ([]*models.DiscussionResponse, error) {
	key := q.Key()
	o.mu.Lock()
	cursor := o.cursors[key]
	o.mu.Unlock()

	if cursor == "" {
		last, err := o.client.LastIDForFeed(ctx, q)
		if err != nil {
			return nil, err
		}
		cursor = last
	}

	resp, err := o.client.GetFeed(ctx, q, cursor)
	if err != nil {
		return nil, err
	}
	res, err := o.ingest(resp)
	if err != nil {
		return nil, err
	}
	pageIDs := res.itemIDs
	if len(pageIDs) == 0 {
		pageIDs = res.discussionIDs
	}

	o.mu.Lock()
	if entry, ok := o.cache[key]; ok {
		entry.ids = appendNew(entry.ids, res.discussionIDs)
	}
	if len(pageIDs) > 0 {
		o.cursors[key] = pageIDs[len(pageIDs)-1]
	}
	o.mu.Unlock()

	logger.Info("feed_page_loaded", "query", key, "count", len(pageIDs), "cursor", cursor)
	return o.materialize(res.discussionIDs), nil
}

// FetchSearch is a stateless search call: results flow through the same
// entity/response upsert path as ordinary feed data, then come back as full
// responses. Nothing is cached or staged.
func (o *Orchestrator) FetchSearch(ctx context.Context, q models.FeedQuery) ([]*models.DiscussionResponse, error) {
	resp, err := o.client.GetSearch(ctx, q)
	if err != nil {
		return nil, err
	}
	ids, err := o.ProcessFeed(resp)
	if err != nil {
		return nil, err
	}
	return o.materialize(ids), nil
}

// SweepCache evicts freshness-cache entries older than the window and
// returns how many were dropped. The sweeper goroutine calls this on its
// schedule.
func (o *Orchestrator) SweepCache() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	evicted := 0
	for key, e := range o.cache {
		if time.Since(e.fetched) > o.window {
			delete(o.cache, key)
			evicted++
		}
	}
	if evicted > 0 {
		logger.Debug("feed_cache_swept", "evicted", evicted)
	}
	return evicted
}

// cached returns the materialized list for key when its entry is younger
// than maxAge (maxAge 0 accepts any age).
func (o *Orchestrator) cached(key string, maxAge time.Duration) ([]*models.DiscussionResponse, bool) {
	o.mu.Lock()
	e, ok := o.cache[key]
	var ids []string
	if ok {
		ids = append([]string(nil), e.ids...)
	}
	o.mu.Unlock()
	if !ok {
		return nil, false
	}
	if maxAge > 0 && time.Since(e.fetched) > maxAge {
		return nil, false
	}
	return o.materialize(ids), true
}

func (o *Orchestrator) materialize(ids []string) []*models.DiscussionResponse {
	out := make([]*models.DiscussionResponse, 0, len(ids))
	for _, id := range ids {
		if dr := o.store.DiscussionResponse(id); dr != nil {
			out = append(out, dr)
		}
	}
	return out
}

func (o *Orchestrator) nextSeq(key string) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seqs[key]++
	return o.seqs[key]
}

func (o *Orchestrator) currentSeq(key string, seq uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seqs[key] == seq
}

func appendNew(ids, more []string) []string {
	have := make(map[string]bool, len(ids))
	for _, id := range ids {
		have[id] = true
	}
	for _, id := range more {
		if !have[id] {
			ids = append(ids, id)
			have[id] = true
		}
	}
	return ids
}

// Incoming-set surface.

// CountIncomingFeedItems returns how many staged ids await integration.
func (o *Orchestrator) CountIncomingFeedItems() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.incoming)
}

// ListenToIncoming registers a callback receiving the staged count after
// every staging or integration.
func (o *Orchestrator) ListenToIncoming(cb func(int)) store.Token {
	o.mu.Lock()
	defer o.mu.Unlock()
	tok := store.Token(utils.GenToken())
	o.incomingL = append(o.incomingL, incomingEntry{tok: tok, fn: cb})
	return tok
}

// RemoveIncomingListener detaches a listener; absent tokens are a no-op.
func (o *Orchestrator) RemoveIncomingListener(tok store.Token) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, e := range o.incomingL {
		if e.tok == tok {
			o.incomingL = append(o.incomingL[:i], o.incomingL[i+1:]...)
			return
		}
	}
}

func (o *Orchestrator) notifyIncoming() {
	o.mu.Lock()
	n := len(o.incoming)
	ls := append([]incomingEntry(nil), o.incomingL...)
	o.mu.Unlock()
	for _, e := range ls {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("incoming_listener_panic", "panic", r)
				}
			}()
			e.fn(n)
		}()
	}
}

// IntegrateIncomingFeed merges the staged incoming ids into the primary
// feed view and clears the set. Staged ids are discussion ids or item ids
// depending on which wire shape delivered them; a discussion-backed staged
// item joins the cached response materializations under its discussion id,
// while other items already live in the store's item set and only need the
// list re-broadcast. Listeners are notified via the deferred scheduler so
// the integration completes before consumers re-read.
func (o *Orchestrator) IntegrateIncomingFeed() {
	o.mu.Lock()
	staged := make([]string, 0, len(o.incoming))
	for id := range o.incoming {
		staged = append(staged, id)
	}
	o.incoming = make(map[string]struct{})
	o.mu.Unlock()

	var drIDs []string
	hadItems := false
	for _, id := range staged {
		if o.store.DiscussionResponse(id) != nil {
			drIDs = append(drIDs, id)
			continue
		}
		hadItems = true
		if it := o.store.FeedItemByID(id); it != nil && it.RefType == models.RefDiscussion {
			if did := it.EntityID(); o.store.DiscussionResponse(did) != nil {
				drIDs = append(drIDs, did)
			}
		}
	}

	o.mu.Lock()
	for _, e := range o.cache {
		e.ids = appendNew(e.ids, drIDs)
	}
	o.mu.Unlock()

	if len(staged) > 0 {
		logger.Info("feed_incoming_integrated", "count", len(staged))
	}
	o.notifyIncoming()
	o.deferFn(func() {
		o.store.NotifyDRs()
		if hadItems {
			o.store.NotifyFeedItems()
		}
	})
}
