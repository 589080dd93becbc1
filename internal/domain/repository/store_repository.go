package repository

import (
	"context"
	"encoding/json"
)

// Disposer terminates a live subscription and releases its resources. Every
// subscribe call returns one; the owner must invoke it on teardown or the
// listener keeps consuming bandwidth and callback cycles indefinitely.
type Disposer func()

// Child is one keyed entry of a collection snapshot.
type Child struct {
	Key string
	Raw json.RawMessage
}

// Decode unmarshals the child value into v.
func (c Child) Decode(v interface{}) error {
	return json.Unmarshal(c.Raw, v)
}

// Snapshot is a full-collection view pushed by the store. Children are ordered
// by the subscription's order key (store insertion order for ties).
type Snapshot struct {
	Children []Child
}

// Query narrows a collection subscription. Zero value means the whole
// collection in store order.
type Query struct {
	OrderBy     string
	LimitToLast int
}

// RealtimeStore is the contract of the remote tree-structured store. The store
// itself is an external collaborator; this interface is everything the sync
// core is allowed to assume about it.
//
// Subscription callbacks are invoked sequentially per subscription, in store
// delivery order. Deliveries across different subscriptions are not ordered
// relative to each other; each view is eventually consistent, not linearizable
// with the others.
type RealtimeStore interface {
	// SubscribeCollection delivers a full snapshot on attach and after every
	// change. A terminal failure is reported through onError and ends the
	// subscription's emission.
	SubscribeCollection(path string, q Query, onSnapshot func(Snapshot), onError func(error)) Disposer

	// SubscribeChildChanged delivers the single changed child of path.
	SubscribeChildChanged(path string, onChange func(Child)) Disposer

	// Write overwrites the value at path.
	Write(ctx context.Context, path string, value interface{}) error

	// Update patches individual fields at path, leaving the rest untouched.
	Update(ctx context.Context, path string, fields map[string]interface{}) error

	// Append creates a new child under path and returns its store-assigned key.
	Append(ctx context.Context, path string, value interface{}) (string, error)

	// RegisterOnDisconnect arranges for value to be written at path when the
	// client's connection to the store terminates without an orderly close.
	RegisterOnDisconnect(ctx context.Context, path string, value interface{}) error
}
