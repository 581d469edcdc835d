package models

type Message struct {
	ID string `json:"id"`
	// DID is the owning discussion id; a message belongs to exactly one.
	DID    string `json:"did"`
	Author string `json:"author,omitempty"`
	// Created timestamp (ns); messages order ascending by this within a
	// discussion regardless of arrival order.
	CreatedTS int64  `json:"created_ts"`
	Text      string `json:"text,omitempty"`
	// EditedTS is set when the text was rewritten after send.
	EditedTS int64 `json:"edited_ts,omitempty"`
	// DeletedTS is the upstream tombstone; locally deleted messages are
	// removed from their discussion's message array.
	DeletedTS int64 `json:"deleted_ts,omitempty"`
}

func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	return *m == *o
}
