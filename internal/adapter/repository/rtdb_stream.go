package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"kirim/internal/domain/repository"
	"kirim/pkg/errors"
	"kirim/pkg/logger"
)

// sseEvent is one framed event of the RTDB streaming REST protocol. put and
// patch carry a {"path": ..., "data": ...} body relative to the subscribed
// location.
type sseEvent struct {
	name string
	data json.RawMessage
}

type streamBody struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// mirror consumes the stream's put/patch events and keeps a local child set,
// turning raw store deltas into the callbacks the contract promises.
type mirror interface {
	reset()
	put(path string, data json.RawMessage)
	patch(path string, data json.RawMessage)
}

func (s *RTDBStore) streamOnce(ctx context.Context, path string, m mirror) error {
	tok, err := s.tokenSource.Token()
	if err != nil {
		return errors.Transport("Failed to mint access token", err)
	}

	endpoint := fmt.Sprintf("%s/%s.json?access_token=%s",
		s.databaseURL, strings.Trim(path, "/"), url.QueryEscape(tok.AccessToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Transport("Failed to build stream request", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Transport("Stream connection failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errors.Permission("Stream rejected for "+path, nil)
	case resp.StatusCode != http.StatusOK:
		return errors.Transport(fmt.Sprintf("Stream for %s returned %d", path, resp.StatusCode), nil)
	}

	m.reset()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024) // image payloads ride inline

	var evt sseEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if err := s.dispatch(path, evt, m); err != nil {
				return err
			}
			evt = sseEvent{}
		case strings.HasPrefix(line, "event:"):
			evt.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			evt.data = json.RawMessage(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Transport("Stream read failed for "+path, err)
	}
	return errors.Transport("Stream for "+path+" ended", nil)
}

func (s *RTDBStore) dispatch(path string, evt sseEvent, m mirror) error {
	switch evt.name {
	case "put", "patch":
		var body streamBody
		if err := json.Unmarshal(evt.data, &body); err != nil {
			logger.Warn("malformed stream event on %s: %v", path, err)
			return nil
		}
		if evt.name == "put" {
			m.put(body.Path, body.Data)
		} else {
			m.patch(body.Path, body.Data)
		}
	case "keep-alive", "":
		// nothing to do
	case "auth_revoked":
		// Token expired mid-stream; reconnecting mints a fresh one.
		return errors.Transport("Stream auth revoked for "+path, nil)
	case "cancel":
		// Security rules no longer allow this read. Terminal.
		return errors.Permission("Stream cancelled for "+path, nil)
	}
	return nil
}

// collectionMirror maintains the subscribed collection's children and emits a
// full ordered snapshot after every server event, matching onValue semantics.
type collectionMirror struct {
	query      repository.Query
	onSnapshot func(repository.Snapshot)

	order  []string
	values map[string]json.RawMessage
}

func (cm *collectionMirror) reset() {
	cm.order = nil
	cm.values = make(map[string]json.RawMessage)
}

func (cm *collectionMirror) put(path string, data json.RawMessage) {
	key, field := splitEventPath(path)
	switch {
	case key == "":
		cm.order = nil
		cm.values = make(map[string]json.RawMessage)
		var children map[string]json.RawMessage
		if len(data) > 0 && string(data) != "null" {
			if err := json.Unmarshal(data, &children); err != nil {
				logger.Warn("malformed root put: %v", err)
				return
			}
		}
		for k, v := range children {
			cm.set(k, v)
		}
	case field == "":
		if string(data) == "null" {
			cm.remove(key)
		} else {
			cm.set(key, data)
		}
	default:
		cm.setField(key, field, data)
	}
	cm.onSnapshot(orderedSnapshot(cm.order, cm.values, cm.query))
}

func (cm *collectionMirror) patch(path string, data json.RawMessage) {
	key, _ := splitEventPath(path)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		logger.Warn("malformed patch: %v", err)
		return
	}
	if key == "" {
		for k, v := range fields {
			cm.set(k, v)
		}
	} else {
		for f, v := range fields {
			cm.setField(key, f, v)
		}
	}
	cm.onSnapshot(orderedSnapshot(cm.order, cm.values, cm.query))
}

func (cm *collectionMirror) set(key string, raw json.RawMessage) {
	if _, ok := cm.values[key]; !ok {
		cm.order = append(cm.order, key)
	}
	cm.values[key] = raw
}

func (cm *collectionMirror) setField(key, field string, raw json.RawMessage) {
	var obj map[string]json.RawMessage
	if existing, ok := cm.values[key]; ok {
		_ = json.Unmarshal(existing, &obj)
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage)
	}
	if string(raw) == "null" {
		delete(obj, field)
	} else {
		obj[field] = raw
	}
	merged, _ := json.Marshal(obj)
	cm.set(key, merged)
}

func (cm *collectionMirror) remove(key string) {
	delete(cm.values, key)
	for i, k := range cm.order {
		if k == key {
			cm.order = append(cm.order[:i], cm.order[i+1:]...)
			break
		}
	}
}

// childChangeMirror tracks the collection silently and fires only when an
// already-known child is modified, matching onChildChanged semantics.
type childChangeMirror struct {
	onChange func(repository.Child)
	values   map[string]json.RawMessage
}

func (cc *childChangeMirror) reset() {
	cc.values = make(map[string]json.RawMessage)
}

func (cc *childChangeMirror) put(path string, data json.RawMessage) {
	key, field := splitEventPath(path)
	if key == "" {
		cc.values = make(map[string]json.RawMessage)
		var children map[string]json.RawMessage
		if len(data) > 0 && string(data) != "null" {
			_ = json.Unmarshal(data, &children)
		}
		for k, v := range children {
			cc.values[k] = v
		}
		return
	}

	_, known := cc.values[key]
	if string(data) == "null" && field == "" {
		delete(cc.values, key)
		return
	}
	if field == "" {
		cc.values[key] = data
	} else {
		cc.mergeField(key, field, data)
	}
	if known {
		cc.onChange(repository.Child{Key: key, Raw: cc.values[key]})
	}
}

func (cc *childChangeMirror) patch(path string, data json.RawMessage) {
	key, _ := splitEventPath(path)
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return
	}
	if key == "" {
		for k, v := range fields {
			_, known := cc.values[k]
			cc.values[k] = v
			if known {
				cc.onChange(repository.Child{Key: k, Raw: v})
			}
		}
		return
	}
	_, known := cc.values[key]
	for f, v := range fields {
		cc.mergeField(key, f, v)
	}
	if known {
		cc.onChange(repository.Child{Key: key, Raw: cc.values[key]})
	}
}

func (cc *childChangeMirror) mergeField(key, field string, raw json.RawMessage) {
	var obj map[string]json.RawMessage
	if existing, ok := cc.values[key]; ok {
		_ = json.Unmarshal(existing, &obj)
	}
	if obj == nil {
		obj = make(map[string]json.RawMessage)
	}
	if string(raw) == "null" {
		delete(obj, field)
	} else {
		obj[field] = raw
	}
	merged, _ := json.Marshal(obj)
	cc.values[key] = merged
}

// splitEventPath splits a stream event path ("/", "/key", "/key/field/...")
// into its child key and remaining field path.
func splitEventPath(path string) (key, field string) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
