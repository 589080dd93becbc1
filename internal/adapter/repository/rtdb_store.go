package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"firebase.google.com/go/v4/db"
	"golang.org/x/oauth2"

	"kirim/internal/domain/repository"
	"kirim/pkg/errors"
	"kirim/pkg/logger"
)

// RTDBStore implements RealtimeStore against the Firebase Realtime Database.
// Writes go through the admin SDK; subscriptions go through the REST streaming
// API (text/event-stream), because the admin SDK ships no listeners. This is
// the same fallback the auth layer uses when it reaches for the Identity
// Toolkit REST API for password sign-in.
type RTDBStore struct {
	client      *db.Client
	databaseURL string
	tokenSource oauth2.TokenSource
	httpClient  *http.Client

	mu       sync.Mutex
	pending  []disconnectWrite
	cancels  map[int]context.CancelFunc
	nextSub  int
	shutdown bool
}

// NewRTDBStore creates a Realtime Database backed store. databaseURL is the
// https://<project>.firebaseio.com root; tokenSource must carry the
// firebase.database and userinfo.email scopes.
func NewRTDBStore(client *db.Client, databaseURL string, tokenSource oauth2.TokenSource) *RTDBStore {
	return &RTDBStore{
		client:      client,
		databaseURL: strings.TrimSuffix(databaseURL, "/"),
		tokenSource: tokenSource,
		httpClient:  &http.Client{}, // no timeout: streaming connections stay open
		cancels:     make(map[int]context.CancelFunc),
	}
}

func (s *RTDBStore) Write(ctx context.Context, path string, value interface{}) error {
	if err := s.client.NewRef(path).Set(ctx, value); err != nil {
		return mapWriteError("Failed to write "+path, err)
	}
	return nil
}

func (s *RTDBStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	if err := s.client.NewRef(path).Update(ctx, fields); err != nil {
		return mapWriteError("Failed to update "+path, err)
	}
	return nil
}

func (s *RTDBStore) Append(ctx context.Context, path string, value interface{}) (string, error) {
	ref, err := s.client.NewRef(path).Push(ctx, value)
	if err != nil {
		return "", mapWriteError("Failed to append to "+path, err)
	}
	return ref.Key, nil
}

// RegisterOnDisconnect keeps a client-side registry of writes to apply when
// the store connection is torn down. The REST surface has no server-side
// onDisconnect; Close applies the registered writes best effort, which covers
// orderly gateway shutdown. An abrupt process kill leaves presence stale until
// the next session.
func (s *RTDBStore) RegisterOnDisconnect(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.BadRequest("Failed to encode value", err)
	}
	s.mu.Lock()
	s.pending = append(s.pending, disconnectWrite{path: path, value: raw})
	s.mu.Unlock()
	return nil
}

// Close cancels every live subscription and applies registered on-disconnect
// writes. Write failures are logged, not returned: shutdown must complete.
func (s *RTDBStore) Close(ctx context.Context) {
	s.mu.Lock()
	s.shutdown = true
	cancels := s.cancels
	s.cancels = make(map[int]context.CancelFunc)
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	for _, w := range pending {
		var v interface{}
		_ = json.Unmarshal(w.value, &v)
		if err := s.client.NewRef(w.path).Set(ctx, v); err != nil {
			logger.Warn("on-disconnect write failed for %s: %v", w.path, err)
		}
	}
}

func (s *RTDBStore) SubscribeCollection(path string, q repository.Query, onSnapshot func(repository.Snapshot), onError func(error)) repository.Disposer {
	return s.subscribe(path, &collectionMirror{query: q, onSnapshot: onSnapshot}, onError)
}

func (s *RTDBStore) SubscribeChildChanged(path string, onChange func(repository.Child)) repository.Disposer {
	return s.subscribe(path, &childChangeMirror{onChange: onChange}, nil)
}

func (s *RTDBStore) subscribe(path string, m mirror, onError func(error)) repository.Disposer {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		cancel()
		return func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.cancels[id] = cancel
	s.mu.Unlock()

	go s.streamLoop(ctx, path, m, onError)

	return func() {
		s.mu.Lock()
		delete(s.cancels, id)
		s.mu.Unlock()
		cancel()
	}
}

// streamLoop keeps one SSE connection to path open, reconnecting with backoff
// on transport failures. Auth revocation and permission rejections are
// terminal: the subscription's emission ends through onError.
func (s *RTDBStore) streamLoop(ctx context.Context, path string, m mirror, onError func(error)) {
	backoff := time.Second
	for {
		err := s.streamOnce(ctx, path, m)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, "PERMISSION_ERROR") {
			if onError != nil {
				onError(err)
			}
			return
		}

		logger.Warn("stream for %s dropped, reconnecting in %s: %v", path, backoff, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func mapWriteError(message string, err error) *errors.AppError {
	if strings.Contains(strings.ToLower(err.Error()), "permission") ||
		strings.Contains(err.Error(), "401") || strings.Contains(err.Error(), "403") {
		return errors.Permission(message, err)
	}
	return errors.Transport(message, err)
}
