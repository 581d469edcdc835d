package orchestrator

import (
	"feedstore/pkg/apiclient"
	"feedstore/pkg/logger"
	"feedstore/pkg/models"
)

// ingestResult carries the identities one normalized page contributed:
// discussion ids for response materialization, item ids for cursor
// advancement, and the subset of either that was new to the store.
type ingestResult struct {
	discussionIDs []string
	itemIDs       []string
	fresh         []string
}

// ProcessFeed normalizes a wire payload — either shape — into response plus
// feed-item storage inside one store transaction, and returns the
// discussion ids the page contributed, in arrival order. Malformed records
// are skipped with a warning; one bad item cannot poison the batch.
func (o *Orchestrator) ProcessFeed(resp *apiclient.FeedResponse) ([]string, error) {
	res, err := o.ingest(resp)
	return res.discussionIDs, err
}

// ProcessIncomingFeed normalizes like ProcessFeed but stages genuinely-new
// ids — discussion ids from the discussions shape, item ids from the items
// shape — into the incoming set instead of the primary feed, so the visible
// list does not reflow under an actively-scrolling viewer. Listeners
// registered via ListenToIncoming observe the new staged count.
func (o *Orchestrator) ProcessIncomingFeed(resp *apiclient.FeedResponse) error {
	res, err := o.ingest(resp)
	if err != nil {
		return err
	}
	if len(res.fresh) > 0 {
		o.mu.Lock()
		for _, id := range res.fresh {
			o.incoming[id] = struct{}{}
		}
		o.mu.Unlock()
		logger.Info("feed_incoming_staged", "count", len(res.fresh))
	}
	o.notifyIncoming()
	return nil
}

// ingest applies the dual-shape normalization: flat users/groups first so
// hydration can resolve them, then discussions or items. Newness is decided
// per record kind before its upsert: an absent response id for the
// discussions shape, an absent item id for the items shape (a
// discussion-backed item is staged once, under its item id).
func (o *Orchestrator) ingest(resp *apiclient.FeedResponse) (ingestResult, error) {
	var res ingestResult
	if resp == nil {
		return res, nil
	}
	err := o.store.Transaction(func() error {
		for _, u := range resp.Users {
			o.store.AddUser(u)
		}
		for _, g := range resp.Groups {
			o.store.AddGroup(g)
		}

		for _, sdr := range resp.Discussions {
			if sdr == nil || sdr.Discussion == nil || sdr.Discussion.ID == "" {
				logger.Warn("feed_discussion_skipped")
				continue
			}
			id := sdr.Discussion.ID
			if o.store.DiscussionResponse(id) == nil {
				res.fresh = append(res.fresh, id)
			}
			o.store.AddShallowDiscussionResponse(sdr)
			o.store.AddFeedItem(itemForDiscussion(o.store.DiscussionResponse(id)))
			res.discussionIDs = append(res.discussionIDs, id)
		}

		for _, it := range resp.Items {
			if it == nil || it.ID == "" || it.EntityID() == "" {
				logger.Warn("feed_item_malformed")
				continue
			}
			if o.store.FeedItemByID(it.ID) == nil {
				res.fresh = append(res.fresh, it.ID)
			}
			o.store.AddFeedItem(it)
			res.itemIDs = append(res.itemIDs, it.ID)
			if it.RefType != models.RefDiscussion || it.Discussion == nil {
				continue
			}
			o.store.AddDiscussionResponse(it.Discussion)
			res.discussionIDs = append(res.discussionIDs, it.Discussion.ID())
		}
		return nil
	})
	if err != nil {
		return ingestResult{}, err
	}
	return res, nil
}

// itemForDiscussion synthesizes the chronological-feed pointer record for a
// discussion page entry. The id derives from the discussion id so refetches
// upsert the same item instead of duplicating it. Seen and dismissed state
// are copied, not aliased: the item and the discussion mutate independently.
func itemForDiscussion(dr *models.DiscussionResponse) *models.FeedItem {
	if dr == nil || dr.Discussion == nil {
		return nil
	}
	d := dr.Discussion
	var seen map[string]int64
	if len(d.SeenAt) > 0 {
		seen = make(map[string]int64, len(d.SeenAt))
		for uid, ts := range d.SeenAt {
			seen[uid] = ts
		}
	}
	return &models.FeedItem{
		ID:          "fi_d_" + d.ID,
		RefType:     models.RefDiscussion,
		RefID:       d.ID,
		Discussion:  dr,
		CreatedBy:   d.CreatedBy,
		LocationID:  d.LocationID,
		CreatedTS:   d.LatestActivityTS,
		SeenAt:      seen,
		DismissedBy: append([]string(nil), d.ArchivedUIDs...),
	}
}
