package usecase

import (
	"context"
	"sync"

	"kirim/internal/domain/entity"
	"kirim/internal/domain/repository"
	ws "kirim/internal/infrastructure/websocket"
	"kirim/pkg/errors"
	"kirim/pkg/logger"
)

// ChatSession owns every live subscription of one authenticated user: the
// roster listener pair, the inbound-message watch, at most one conversation
// stream, and one preview watch per roster entry. Every disposer it creates
// is recorded here and invoked on the transition that invalidates it (peer
// switch, roster churn, teardown); nothing is left to garbage collection.
type ChatSession struct {
	uid string

	presence     *PresenceUseCase
	roster       *RosterUseCase
	conversation *ConversationUseCase
	preview      *PreviewUseCase
	notifier     *NotifierUseCase
	ws           *ws.Manager

	startOnce sync.Once

	mu           sync.Mutex
	closed       bool
	rosterDisp   repository.Disposer
	notifierDisp repository.Disposer
	convDisp     repository.Disposer
	activePeer   string
	previewDisps map[string]repository.Disposer
	previews     map[string]string
	users        []*entity.User
}

func (s *ChatSession) start(ctx context.Context) {
	s.startOnce.Do(func() {
		if err := s.presence.Activate(ctx, s.uid); err != nil {
			// Presence is best effort; the session still runs.
			logger.Warn("presence activation failed for %s: %v", s.uid, err)
		}

		rosterDisp := s.roster.Subscribe(s.uid, s.handleRoster, s.streamError("roster"))
		notifierDisp := s.notifier.WatchInbound(s.uid, s.currentPeer, s.handleAlert, s.streamError("notifier"))

		s.mu.Lock()
		s.rosterDisp = rosterDisp
		s.notifierDisp = notifierDisp
		closed := s.closed
		s.mu.Unlock()
		if closed {
			rosterDisp()
			notifierDisp()
		}
	})
}

// handleRoster reconciles preview subscriptions with the new roster: one
// watch per entry, torn down as soon as the entry leaves, or the listeners
// leak unboundedly as users churn.
func (s *ChatSession) handleRoster(users []*entity.User) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.users = users

	want := make(map[string]bool, len(users))
	for _, u := range users {
		want[u.UID] = true
	}

	var stale []repository.Disposer
	for uid, disp := range s.previewDisps {
		if !want[uid] {
			if disp != nil {
				stale = append(stale, disp)
			}
			delete(s.previewDisps, uid)
			delete(s.previews, uid)
		}
	}

	var added []string
	for uid := range want {
		if _, ok := s.previewDisps[uid]; !ok {
			s.previewDisps[uid] = nil // reserved; replaced below
			added = append(added, uid)
		}
	}
	s.mu.Unlock()

	for _, disp := range stale {
		disp()
	}
	for _, peer := range added {
		peer := peer
		disp := s.preview.WatchLatest(s.uid, peer, func(m *entity.Message) {
			s.handlePreview(peer, m)
		}, s.streamError("preview"))

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			disp()
			continue
		}
		if _, stillWanted := s.previewDisps[peer]; !stillWanted {
			s.mu.Unlock()
			disp()
			continue
		}
		s.previewDisps[peer] = disp
		s.mu.Unlock()
	}

	s.ws.SendEvent(s.uid, ws.Event{Type: "roster", Payload: s.Roster()})
}

func (s *ChatSession) handlePreview(peer string, m *entity.Message) {
	if m == nil {
		// The single-message window moved to another conversation; keep
		// whatever preview was fetched before rather than erasing it.
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, tracked := s.previewDisps[peer]; !tracked {
		s.mu.Unlock()
		return
	}
	preview := FormatPreview(m)
	s.previews[peer] = preview
	s.mu.Unlock()

	s.ws.SendEvent(s.uid, ws.Event{Type: "preview", Payload: map[string]string{
		"peerId":  peer,
		"preview": preview,
	}})
}

// OpenConversation replaces the active conversation stream. The previous
// stream is fully disposed before the new pair predicate attaches, so no
// message of the old peer can leak into the new view.
func (s *ChatSession) OpenConversation(peer string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.BadRequest("Session is closed", nil)
	}
	old := s.convDisp
	s.convDisp = nil
	s.activePeer = peer
	s.mu.Unlock()

	if old != nil {
		old()
	}

	cleared := s.notifier.ClearForPeer(s.uid, peer)

	disp := s.conversation.Open(s.uid, peer, s.handleMessages, s.streamError("conversation"))

	s.mu.Lock()
	if s.closed || s.activePeer != peer {
		// A concurrent switch or teardown won; this stream is already stale.
		s.mu.Unlock()
		disp()
		return nil
	}
	s.convDisp = disp
	s.mu.Unlock()

	if cleared {
		s.pushAlert(false)
	}
	return nil
}

func (s *ChatSession) handleMessages(messages []*entity.Message) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	peer := s.activePeer
	s.mu.Unlock()

	s.ws.SendEvent(s.uid, ws.Event{Type: "messages", Payload: map[string]interface{}{
		"peerId":   peer,
		"messages": messages,
	}})
}

// SendMessage appends one message. On failure the caller's input is left
// intact so the user can retry.
func (s *ChatSession) SendMessage(ctx context.Context, receiverID, content, msgType string) (*entity.Message, error) {
	return s.conversation.Send(ctx, s.uid, receiverID, content, msgType)
}

func (s *ChatSession) DismissAlert() {
	s.notifier.Dismiss(s.uid)
	s.pushAlert(false)
}

func (s *ChatSession) AlertActive() bool {
	return s.notifier.Alert(s.uid)
}

func (s *ChatSession) ActivePeer() string {
	return s.currentPeer()
}

// Roster returns the current roster annotated with previews.
func (s *ChatSession) Roster() []*entity.RosterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]*entity.RosterEntry, 0, len(s.users))
	for _, u := range s.users {
		entries = append(entries, &entity.RosterEntry{
			User:    u,
			Preview: s.previews[u.UID],
		})
	}
	return entries
}

// Close enumerates and invokes every live disposer, then writes presence
// offline. Must run before the session's token is invalidated; a presence
// failure is logged and never blocks teardown.
func (s *ChatSession) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true

	var disposers []repository.Disposer
	for _, d := range []repository.Disposer{s.convDisp, s.rosterDisp, s.notifierDisp} {
		if d != nil {
			disposers = append(disposers, d)
		}
	}
	for _, d := range s.previewDisps {
		if d != nil {
			disposers = append(disposers, d)
		}
	}
	s.convDisp = nil
	s.rosterDisp = nil
	s.notifierDisp = nil
	s.previewDisps = make(map[string]repository.Disposer)
	s.previews = make(map[string]string)
	s.users = nil
	s.activePeer = ""
	s.mu.Unlock()

	for _, d := range disposers {
		d()
	}

	if err := s.presence.Deactivate(ctx, s.uid); err != nil {
		logger.Warn("presence deactivation failed for %s: %v", s.uid, err)
	}
}

func (s *ChatSession) currentPeer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePeer
}

func (s *ChatSession) handleAlert() {
	s.pushAlert(true)
}

func (s *ChatSession) pushAlert(active bool) {
	s.ws.SendEvent(s.uid, ws.Event{Type: "alert", Payload: map[string]bool{"active": active}})
}

// streamError surfaces a terminated subscription as a non-fatal
// "data unavailable" state; it never crashes the session.
func (s *ChatSession) streamError(source string) func(error) {
	return func(err error) {
		logger.Error("%s stream failed for %s: %v", source, s.uid, err)
		s.ws.SendEvent(s.uid, ws.Event{Type: "error", Payload: map[string]string{
			"source":  source,
			"message": "data unavailable",
		}})
	}
}

// SessionManager keeps at most one ChatSession per authenticated uid.
type SessionManager struct {
	presence     *PresenceUseCase
	roster       *RosterUseCase
	conversation *ConversationUseCase
	preview      *PreviewUseCase
	notifier     *NotifierUseCase
	ws           *ws.Manager

	mu       sync.Mutex
	sessions map[string]*ChatSession
}

func NewSessionManager(
	presence *PresenceUseCase,
	roster *RosterUseCase,
	conversation *ConversationUseCase,
	preview *PreviewUseCase,
	notifier *NotifierUseCase,
	wsManager *ws.Manager,
) *SessionManager {
	return &SessionManager{
		presence:     presence,
		roster:       roster,
		conversation: conversation,
		preview:      preview,
		notifier:     notifier,
		ws:           wsManager,
		sessions:     make(map[string]*ChatSession),
	}
}

// Start returns the user's session, creating and starting it on first use.
func (m *SessionManager) Start(ctx context.Context, uid string) *ChatSession {
	m.mu.Lock()
	s, ok := m.sessions[uid]
	if !ok {
		s = &ChatSession{
			uid:          uid,
			presence:     m.presence,
			roster:       m.roster,
			conversation: m.conversation,
			preview:      m.preview,
			notifier:     m.notifier,
			ws:           m.ws,
			previewDisps: make(map[string]repository.Disposer),
			previews:     make(map[string]string),
		}
		m.sessions[uid] = s
	}
	m.mu.Unlock()

	s.start(ctx)
	return s
}

// Get returns the live session for uid, if any.
func (m *SessionManager) Get(uid string) (*ChatSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[uid]
	return s, ok
}

// Stop closes and forgets the user's session.
func (m *SessionManager) Stop(ctx context.Context, uid string) {
	m.mu.Lock()
	s := m.sessions[uid]
	delete(m.sessions, uid)
	m.mu.Unlock()

	if s != nil {
		s.Close(ctx)
	}
}

// StopAll closes every session; used at gateway shutdown.
func (m *SessionManager) StopAll(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*ChatSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*ChatSession)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close(ctx)
	}
}
