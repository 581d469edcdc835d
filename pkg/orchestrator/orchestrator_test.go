package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"feedstore/pkg/apiclient"
	"feedstore/pkg/models"
	"feedstore/pkg/store"
)

func wireDiscussion(id string, version, activity int64) map[string]any {
	return map[string]any{
		"discussion": map[string]any{
			"id":                 id,
			"version":            version,
			"members":            []string{"u1", "u2"},
			"active_members":     []string{"u1"},
			"first_message":      "seed",
			"latest_message":     "reply",
			"latest_activity_ts": activity,
		},
		"messages": []any{
			map[string]any{"id": "reply", "did": id, "created_ts": activity},
		},
		"user_ids": []string{"u1", "u2"},
	}
}

type testRig struct {
	orch  *Orchestrator
	store *store.Store
	hits  *int64
}

// newRig builds an orchestrator against a fake API returning the given
// pages in sequence (the last page repeats). Defer runs synchronously so
// tests observe notifications deterministically.
func newRig(t *testing.T, pages ...[]map[string]any) *testRig {
	t.Helper()
	var hits int64
	r := mux.NewRouter()
	r.HandleFunc("/v1/feed", func(w http.ResponseWriter, req *http.Request) {
		n := atomic.AddInt64(&hits, 1)
		page := pages[len(pages)-1]
		if int(n) <= len(pages) {
			page = pages[n-1]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"discussions": page})
	})
	r.HandleFunc("/v1/search", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"discussions": pages[0]})
	})
	r.HandleFunc("/v1/feed/last_id", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"last_id": "cursor0"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	s := store.New()
	orch := New(s, apiclient.New(srv.URL, 2*time.Second), Options{
		Freshness: time.Minute,
		RPS:       1000,
		Burst:     1000,
		Defer:     func(fn func()) { fn() },
	})
	return &testRig{orch: orch, store: s, hits: &hits}
}

func (rig *testRig) fetches() int { return int(atomic.LoadInt64(rig.hits)) }

func TestSoftRefreshServesFreshCache(t *testing.T) {
	rig := newRig(t, []map[string]any{wireDiscussion("d1", 1, 100)})

	drs, err := rig.orch.RefreshFeed(context.Background(), models.FeedQuery{}, true)
	if err != nil {
		t.Fatalf("RefreshFeed: %v", err)
	}
	if len(drs) != 1 || drs[0].ID() != "d1" {
		t.Fatalf("unexpected feed: %d entries", len(drs))
	}
	if rig.fetches() != 1 {
		t.Fatalf("want 1 fetch; got %d", rig.fetches())
	}

	// soft refresh inside the freshness window serves the cache
	drs, err = rig.orch.RefreshFeed(context.Background(), models.FeedQuery{}, false)
	if err != nil {
		t.Fatalf("soft RefreshFeed: %v", err)
	}
	if len(drs) != 1 {
		t.Fatalf("cached materialization missing")
	}
	if rig.fetches() != 1 {
		t.Fatalf("soft refresh must not refetch; got %d fetches", rig.fetches())
	}

	// hard refresh always fetches
	if _, err := rig.orch.RefreshFeed(context.Background(), models.FeedQuery{}, true); err != nil {
		t.Fatalf("hard RefreshFeed: %v", err)
	}
	if rig.fetches() != 2 {
		t.Fatalf("hard refresh must bypass the cache; got %d fetches", rig.fetches())
	}
}

func TestSweepCacheEviction(t *testing.T) {
	rig := newRig(t, []map[string]any{wireDiscussion("d1", 1, 100)})
	if _, err := rig.orch.RefreshFeed(context.Background(), models.FeedQuery{}, true); err != nil {
		t.Fatalf("RefreshFeed: %v", err)
	}
	if got := rig.orch.SweepCache(); got != 0 {
		t.Fatalf("fresh entry must survive the sweep; evicted %d", got)
	}
	rig.orch.mu.Lock()
	for _, e := range rig.orch.cache {
		e.fetched = time.Now().Add(-time.Hour)
	}
	rig.orch.mu.Unlock()
	if got := rig.orch.SweepCache(); got != 1 {
		t.Fatalf("expired entry must be evicted; evicted %d", got)
	}
	// after eviction a soft refresh fetches again
	if _, err := rig.orch.RefreshFeed(context.Background(), models.FeedQuery{}, false); err != nil {
		t.Fatalf("soft RefreshFeed: %v", err)
	}
	if rig.fetches() != 2 {
		t.Fatalf("want refetch after eviction; got %d fetches", rig.fetches())
	}
}

func TestIncomingStagingAndIntegration(t *testing.T) {
	rig := newRig(t, []map[string]any{wireDiscussion("d1", 1, 100)})
	if _, err := rig.orch.RefreshFeed(context.Background(), models.FeedQuery{}, true); err != nil {
		t.Fatalf("RefreshFeed: %v", err)
	}

	var counts []int
	rig.orch.ListenToIncoming(func(n int) { counts = append(counts, n) })

	// a pushed payload with one known and one new discussion
	resp := &apiclient.FeedResponse{
		Discussions: []*models.ShallowDiscussionResponse{
			shallow("d1", 2, 150),
			shallow("d2", 1, 200),
		},
	}
	if err := rig.orch.ProcessIncomingFeed(resp); err != nil {
		t.Fatalf("ProcessIncomingFeed: %v", err)
	}

	if got := rig.orch.CountIncomingFeedItems(); got != 1 {
		t.Fatalf("only the genuinely-new id is staged; got %d", got)
	}
	if len(counts) != 1 || counts[0] != 1 {
		t.Fatalf("incoming listener counts: %v", counts)
	}
	// entities are stored even while staged
	if rig.store.DiscussionResponse("d2") == nil {
		t.Fatalf("staged discussion must still be stored")
	}

	drCalls := 0
	rig.store.ListenToDRs(func([]*models.DiscussionResponse) { drCalls++ })

	rig.orch.IntegrateIncomingFeed()
	if got := rig.orch.CountIncomingFeedItems(); got != 0 {
		t.Fatalf("integration must clear the staging set; got %d", got)
	}
	if len(counts) != 2 || counts[1] != 0 {
		t.Fatalf("incoming listener counts after integration: %v", counts)
	}
	if drCalls != 1 {
		t.Fatalf("response list listeners must be poked once; got %d", drCalls)
	}

	// the integrated id is now part of the visible materialization
	drs, err := rig.orch.RefreshFeed(context.Background(), models.FeedQuery{}, false)
	if err != nil {
		t.Fatalf("soft RefreshFeed: %v", err)
	}
	if len(drs) != 2 {
		t.Fatalf("integrated feed must show both discussions; got %d", len(drs))
	}
}

func TestProcessFeedItemsShape(t *testing.T) {
	rig := newRig(t, []map[string]any{})
	resp := &apiclient.FeedResponse{
		Items: []*models.FeedItem{
			{ID: "i1", RefType: models.RefGroup, RefID: "g1", CreatedTS: 100},
			{ID: "", RefType: models.RefGroup, RefID: "g2", CreatedTS: 100}, // malformed
			{
				ID: "i2", RefType: models.RefDiscussion, RefID: "d1", CreatedTS: 200,
				Discussion: &models.DiscussionResponse{
					Discussion: &models.Discussion{ID: "d1", Version: 1},
					Messages:   []*models.Message{{ID: "m1", DID: "d1", CreatedTS: 200}},
				},
			},
		},
		Groups: []*models.Group{{ID: "g1", Name: "hikers"}},
	}
	ids, err := rig.orch.ProcessFeed(resp)
	if err != nil {
		t.Fatalf("ProcessFeed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "d1" {
		t.Fatalf("discussion ids from items shape: %v", ids)
	}
	if rig.store.FeedItemByID("i1") == nil || rig.store.FeedItemByID("i2") == nil {
		t.Fatalf("items not stored")
	}
	if rig.store.FeedItemByID("") != nil {
		t.Fatalf("malformed item must be skipped")
	}
	if rig.store.GroupByID("g1") == nil {
		t.Fatalf("flat groups not stored")
	}
	if rig.store.DiscussionResponse("d1") == nil {
		t.Fatalf("embedded discussion not stored")
	}
}

func TestProcessIncomingFeedItemsShape(t *testing.T) {
	rig := newRig(t, []map[string]any{})

	var counts []int
	rig.orch.ListenToIncoming(func(n int) { counts = append(counts, n) })

	resp := &apiclient.FeedResponse{
		Items: []*models.FeedItem{
			{ID: "i_new", RefType: models.RefGroup, RefID: "g1", CreatedTS: 100},
		},
	}
	if err := rig.orch.ProcessIncomingFeed(resp); err != nil {
		t.Fatalf("ProcessIncomingFeed: %v", err)
	}
	if got := rig.orch.CountIncomingFeedItems(); got != 1 {
		t.Fatalf("new group item must be staged; got %d", got)
	}
	if len(counts) != 1 || counts[0] != 1 {
		t.Fatalf("incoming listener counts: %v", counts)
	}
	// the item is stored even while staged
	if rig.store.FeedItemByID("i_new") == nil {
		t.Fatalf("staged item must still be stored")
	}

	// retransmission: already-known items stage nothing further
	if err := rig.orch.ProcessIncomingFeed(resp); err != nil {
		t.Fatalf("ProcessIncomingFeed: %v", err)
	}
	if got := rig.orch.CountIncomingFeedItems(); got != 1 {
		t.Fatalf("retransmitted item must not re-stage; got %d", got)
	}

	itemCalls := 0
	rig.store.ListenToFeedItems(func([]*models.FeedItem) { itemCalls++ })

	rig.orch.IntegrateIncomingFeed()
	if got := rig.orch.CountIncomingFeedItems(); got != 0 {
		t.Fatalf("integration must clear the staging set; got %d", got)
	}
	if itemCalls != 1 {
		t.Fatalf("item list listeners must be poked once; got %d", itemCalls)
	}
	if last := counts[len(counts)-1]; last != 0 {
		t.Fatalf("incoming listener counts after integration: %v", counts)
	}
}

func TestIncomingDiscussionItemJoinsCachedFeed(t *testing.T) {
	rig := newRig(t, []map[string]any{wireDiscussion("d1", 1, 100)})
	if _, err := rig.orch.RefreshFeed(context.Background(), models.FeedQuery{}, true); err != nil {
		t.Fatalf("RefreshFeed: %v", err)
	}

	// a pushed discussion-backed item in the items shape
	resp := &apiclient.FeedResponse{
		Items: []*models.FeedItem{
			{
				ID: "i2", RefType: models.RefDiscussion, RefID: "d2", CreatedTS: 200,
				Discussion: &models.DiscussionResponse{
					Discussion: &models.Discussion{ID: "d2", Version: 1},
					Messages:   []*models.Message{{ID: "m1", DID: "d2", CreatedTS: 200}},
				},
			},
		},
	}
	if err := rig.orch.ProcessIncomingFeed(resp); err != nil {
		t.Fatalf("ProcessIncomingFeed: %v", err)
	}
	if got := rig.orch.CountIncomingFeedItems(); got != 1 {
		t.Fatalf("discussion-backed item staged once under its item id; got %d", got)
	}

	rig.orch.IntegrateIncomingFeed()

	// the item's discussion joined the cached materialization
	drs, err := rig.orch.RefreshFeed(context.Background(), models.FeedQuery{}, false)
	if err != nil {
		t.Fatalf("soft RefreshFeed: %v", err)
	}
	if len(drs) != 2 {
		t.Fatalf("integrated feed must show both discussions; got %d", len(drs))
	}
}

func TestSynthesizedItemCopiesSeenState(t *testing.T) {
	dr := &models.DiscussionResponse{
		Discussion: &models.Discussion{
			ID:               "d1",
			SeenAt:           map[string]int64{"u1": 100},
			ArchivedUIDs:     []string{"u2"},
			LatestActivityTS: 100,
		},
	}
	it := itemForDiscussion(dr)

	it.SeenAt["u1"] = 999
	it.DismissedBy[0] = "u9"

	if got := dr.Discussion.SeenAt["u1"]; got != 100 {
		t.Fatalf("item seen map aliases the discussion's; got %d", got)
	}
	if got := dr.Discussion.ArchivedUIDs[0]; got != "u2" {
		t.Fatalf("item dismissed slice aliases the discussion's; got %q", got)
	}
}

func TestLoadBottomFeedPagination(t *testing.T) {
	rig := newRig(t,
		[]map[string]any{wireDiscussion("d1", 1, 300)},
		[]map[string]any{wireDiscussion("d0", 1, 100)},
	)
	if _, err := rig.orch.RefreshFeed(context.Background(), models.FeedQuery{}, true); err != nil {
		t.Fatalf("RefreshFeed: %v", err)
	}

	page, err := rig.orch.LoadBottomFeed(context.Background(), models.FeedQuery{})
	if err != nil {
		t.Fatalf("LoadBottomFeed: %v", err)
	}
	if len(page) != 1 || page[0].ID() != "d0" {
		t.Fatalf("unexpected page: %d entries", len(page))
	}

	// the page joined the cached materialization
	drs, err := rig.orch.RefreshFeed(context.Background(), models.FeedQuery{}, false)
	if err != nil {
		t.Fatalf("soft RefreshFeed: %v", err)
	}
	if len(drs) != 2 {
		t.Fatalf("appended page missing from the feed; got %d", len(drs))
	}
}

func TestLoadBottomFeedItemsShapeCursor(t *testing.T) {
	var mu sync.Mutex
	var afters []string
	r := mux.NewRouter()
	r.HandleFunc("/v1/feed", func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		afters = append(afters, req.URL.Query().Get("after"))
		page := len(afters)
		mu.Unlock()
		items := []map[string]any{
			{"id": "i1", "ref_type": "group", "ref_id": "g1", "created_ts": 300},
			{"id": "i2", "ref_type": "contact", "ref_id": "u7", "created_ts": 200},
		}
		if page > 1 {
			items = []map[string]any{
				{"id": "i3", "ref_type": "group", "ref_id": "g2", "created_ts": 100},
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": items})
	})
	r.HandleFunc("/v1/feed/last_id", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"last_id": "i0"})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	s := store.New()
	orch := New(s, apiclient.New(srv.URL, 2*time.Second), Options{
		Freshness: time.Minute, RPS: 1000, Burst: 1000,
		Defer: func(fn func()) { fn() },
	})

	if _, err := orch.LoadBottomFeed(context.Background(), models.FeedQuery{}); err != nil {
		t.Fatalf("LoadBottomFeed: %v", err)
	}
	// the cursor must advance past an all-items page so the next call asks
	// for the following one
	if _, err := orch.LoadBottomFeed(context.Background(), models.FeedQuery{}); err != nil {
		t.Fatalf("second LoadBottomFeed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(afters) != 2 || afters[0] != "i0" || afters[1] != "i2" {
		t.Fatalf("cursor progression wrong: %v", afters)
	}
	if s.FeedItemByID("i3") == nil {
		t.Fatalf("second page not ingested")
	}
}

func TestFetchSearch(t *testing.T) {
	rig := newRig(t, []map[string]any{wireDiscussion("d1", 1, 100)})
	drs, err := rig.orch.FetchSearch(context.Background(), models.FeedQuery{})
	if err != nil {
		t.Fatalf("FetchSearch: %v", err)
	}
	if len(drs) != 1 || drs[0].ID() != "d1" {
		t.Fatalf("search results: %d entries", len(drs))
	}
	// stored through the ordinary upsert path
	if rig.store.DiscussionResponse("d1") == nil {
		t.Fatalf("search results must land in the store")
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	var hits int64
	r := mux.NewRouter()
	r.HandleFunc("/v1/feed", func(w http.ResponseWriter, req *http.Request) {
		if atomic.AddInt64(&hits, 1) == 1 {
			<-release // hold the first response until a later fetch wins
			_ = json.NewEncoder(w).Encode(map[string]any{
				"discussions": []map[string]any{wireDiscussion("d-stale", 1, 100)},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"discussions": []map[string]any{wireDiscussion("d-fresh", 1, 200)},
		})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	s := store.New()
	orch := New(s, apiclient.New(srv.URL, 5*time.Second), Options{
		Freshness: time.Minute, RPS: 1000, Burst: 1000,
		Defer: func(fn func()) { fn() },
	})

	firstErr := make(chan error, 1)
	go func() {
		_, err := orch.RefreshFeed(context.Background(), models.FeedQuery{}, true)
		firstErr <- err
	}()

	// wait for the slow fetch to be in flight before racing it
	for atomic.LoadInt64(&hits) == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	drs, err := orch.RefreshFeed(context.Background(), models.FeedQuery{}, true)
	if err != nil {
		t.Fatalf("second RefreshFeed: %v", err)
	}
	if len(drs) != 1 || drs[0].ID() != "d-fresh" {
		t.Fatalf("fresh fetch result wrong: %d entries", len(drs))
	}

	close(release)
	if err := <-firstErr; !errors.Is(err, ErrStale) {
		t.Fatalf("superseded fetch must return ErrStale; got %v", err)
	}
	if s.DiscussionResponse("d-stale") != nil {
		t.Fatalf("stale response must not touch the store")
	}
}

func shallow(id string, version, activity int64) *models.ShallowDiscussionResponse {
	return &models.ShallowDiscussionResponse{
		Discussion: &models.Discussion{
			ID:               id,
			Version:          version,
			Members:          []string{"u1", "u2"},
			ActiveMembers:    []string{"u1"},
			FirstMessageID:   "seed",
			LatestMessageID:  "reply",
			LatestActivityTS: activity,
		},
		Messages: []*models.Message{{ID: "reply", DID: id, CreatedTS: activity}},
		UserIDs:  []string{"u1"},
	}
}
