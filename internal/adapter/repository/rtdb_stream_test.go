package repository

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"kirim/internal/domain/repository"
)

func raw(s string) json.RawMessage {
	return json.RawMessage(s)
}

func TestCollectionMirrorRootPut(t *testing.T) {
	var last repository.Snapshot
	cm := &collectionMirror{
		query:      repository.Query{OrderBy: "timestamp"},
		onSnapshot: func(snap repository.Snapshot) { last = snap },
	}
	cm.reset()

	cm.put("/", raw(`{"m1":{"timestamp":100},"m2":{"timestamp":50}}`))

	assert.Equal(t, []string{"m2", "m1"}, keys(last))
}

func TestCollectionMirrorChildPutAndRemove(t *testing.T) {
	var last repository.Snapshot
	cm := &collectionMirror{onSnapshot: func(snap repository.Snapshot) { last = snap }}
	cm.reset()

	cm.put("/a", raw(`{"name":"a"}`))
	cm.put("/b", raw(`{"name":"b"}`))
	assert.Equal(t, []string{"a", "b"}, keys(last))

	cm.put("/a", raw(`null`))
	assert.Equal(t, []string{"b"}, keys(last))
}

func TestCollectionMirrorFieldPutMergesIntoChild(t *testing.T) {
	var last repository.Snapshot
	cm := &collectionMirror{onSnapshot: func(snap repository.Snapshot) { last = snap }}
	cm.reset()

	cm.put("/a", raw(`{"name":"a","isOnline":false}`))
	cm.put("/a/isOnline", raw(`true`))

	var got struct {
		Name     string `json:"name"`
		IsOnline bool   `json:"isOnline"`
	}
	assert.NoError(t, last.Children[0].Decode(&got))
	assert.Equal(t, "a", got.Name)
	assert.True(t, got.IsOnline)
}

func TestCollectionMirrorPatch(t *testing.T) {
	var last repository.Snapshot
	cm := &collectionMirror{onSnapshot: func(snap repository.Snapshot) { last = snap }}
	cm.reset()

	cm.put("/a", raw(`{"name":"a","isOnline":true}`))
	cm.patch("/a", raw(`{"isOnline":false}`))

	var got struct {
		Name     string `json:"name"`
		IsOnline bool   `json:"isOnline"`
	}
	assert.NoError(t, last.Children[0].Decode(&got))
	assert.Equal(t, "a", got.Name)
	assert.False(t, got.IsOnline)
}

func TestChildChangeMirrorIgnoresAdditions(t *testing.T) {
	var changed []string
	cc := &childChangeMirror{onChange: func(c repository.Child) { changed = append(changed, c.Key) }}
	cc.reset()

	cc.put("/", raw(`{"a":{"name":"a"}}`))
	assert.Empty(t, changed)

	cc.put("/b", raw(`{"name":"b"}`)) // addition
	assert.Empty(t, changed)

	cc.put("/a/isOnline", raw(`true`)) // change to a known child
	assert.Equal(t, []string{"a"}, changed)

	cc.patch("/b", raw(`{"name":"renamed"}`))
	assert.Equal(t, []string{"a", "b"}, changed)
}

func TestChildChangeMirrorCarriesMergedRecord(t *testing.T) {
	var got repository.Child
	cc := &childChangeMirror{onChange: func(c repository.Child) { got = c }}
	cc.reset()

	cc.put("/", raw(`{"a":{"name":"a","isOnline":false}}`))
	cc.put("/a/isOnline", raw(`true`))

	var rec struct {
		Name     string `json:"name"`
		IsOnline bool   `json:"isOnline"`
	}
	assert.NoError(t, got.Decode(&rec))
	assert.Equal(t, "a", rec.Name)
	assert.True(t, rec.IsOnline)
}

func TestSplitEventPath(t *testing.T) {
	cases := []struct {
		path  string
		key   string
		field string
	}{
		{"/", "", ""},
		{"/a", "a", ""},
		{"/a/isOnline", "a", "isOnline"},
		{"/a/nested/deep", "a", "nested/deep"},
	}
	for _, c := range cases {
		key, field := splitEventPath(c.path)
		assert.Equal(t, c.key, key, c.path)
		assert.Equal(t, c.field, field, c.path)
	}
}

func TestDispatchTerminalEvents(t *testing.T) {
	s := &RTDBStore{}
	cm := &collectionMirror{onSnapshot: func(repository.Snapshot) {}}
	cm.reset()

	assert.NoError(t, s.dispatch("messages", sseEvent{name: "keep-alive", data: raw(`null`)}, cm))

	err := s.dispatch("messages", sseEvent{name: "auth_revoked"}, cm)
	assert.Error(t, err)

	err = s.dispatch("messages", sseEvent{name: "cancel"}, cm)
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "cancelled")
	}
}
