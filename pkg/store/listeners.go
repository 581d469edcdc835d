package store

import (
	"feedstore/pkg/logger"
	"feedstore/pkg/utils"
)

// Token is an opaque listener handle. Removal with an already-absent token
// is a no-op.
type Token string

type lentry[T any] struct {
	tok Token
	fn  func(T)
}

// listeners is an ordered callback list for one notification surface
// (a whole collection, the me record, the DR id set).
type listeners[T any] struct {
	entries []lentry[T]
}

func (l *listeners[T]) add(fn func(T)) Token {
	tok := Token(utils.GenToken())
	l.entries = append(l.entries, lentry[T]{tok: tok, fn: fn})
	return tok
}

func (l *listeners[T]) remove(tok Token) {
	for i, e := range l.entries {
		if e.tok == tok {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *listeners[T]) notify(v T) {
	// iterate over a copy so callbacks may detach themselves
	for _, e := range append([]lentry[T](nil), l.entries...) {
		invoke(e.fn, v)
	}
}

// keyedListeners holds per-id callback lists.
type keyedListeners[T any] struct {
	m map[string][]lentry[T]
}

func (k *keyedListeners[T]) add(id string, fn func(T)) Token {
	if k.m == nil {
		k.m = make(map[string][]lentry[T])
	}
	tok := Token(utils.GenToken())
	k.m[id] = append(k.m[id], lentry[T]{tok: tok, fn: fn})
	return tok
}

func (k *keyedListeners[T]) remove(id string, tok Token) {
	for i, e := range k.m[id] {
		if e.tok == tok {
			k.m[id] = append(k.m[id][:i], k.m[id][i+1:]...)
			return
		}
	}
}

func (k *keyedListeners[T]) notify(id string, v T) {
	for _, e := range append([]lentry[T](nil), k.m[id]...) {
		invoke(e.fn, v)
	}
}

// invoke runs one callback under recover so a failing listener cannot abort
// sibling notifications or corrupt store state.
func invoke[T any](fn func(T), v T) {
	defer recoverListener()
	fn(v)
	notifications.Inc()
}

func recoverListener() {
	if r := recover(); r != nil {
		listenerFailures.Inc()
		logger.Error("listener_panic", "panic", r)
	}
}
