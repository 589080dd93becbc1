package usecase

import (
	"sync"

	"kirim/internal/domain/entity"
	"kirim/internal/domain/repository"
)

// NotifierUseCase raises a sticky per-user alert flag when a message arrives
// from someone other than the peer whose conversation is currently open. A
// flag, not a counter: further inbound messages while it is set are no-ops.
type NotifierUseCase struct {
	store repository.RealtimeStore

	mu     sync.Mutex
	alerts map[string]*alertState
}

type alertState struct {
	raised bool
	from   string
}

func NewNotifierUseCase(store repository.RealtimeStore) *NotifierUseCase {
	return &NotifierUseCase{
		store:  store,
		alerts: make(map[string]*alertState),
	}
}

// WatchInbound watches the global collection for messages addressed to
// currentUID. openPeer reports the peer of the currently open conversation
// ("" when none); onAlert fires once per false-to-true flag transition.
// Messages already in the store at attach time never alert. A terminal
// subscription failure is reported through onError.
func (uc *NotifierUseCase) WatchInbound(currentUID string, openPeer func() string, onAlert func(), onError func(error)) repository.Disposer {
	q := repository.Query{OrderBy: "timestamp", LimitToLast: 1}
	var seenMu sync.Mutex
	primed := false
	lastKey := ""

	return uc.store.SubscribeCollection("messages", q, func(snap repository.Snapshot) {
		seenMu.Lock()
		if len(snap.Children) == 0 {
			primed = true
			seenMu.Unlock()
			return
		}
		child := snap.Children[len(snap.Children)-1]
		if !primed {
			primed = true
			lastKey = child.Key
			seenMu.Unlock()
			return
		}
		if child.Key == lastKey {
			seenMu.Unlock()
			return
		}
		lastKey = child.Key
		seenMu.Unlock()

		var m entity.Message
		if err := child.Decode(&m); err != nil {
			return
		}
		if m.ReceiverID != currentUID {
			return
		}
		if peer := openPeer(); peer != "" && peer == m.SenderID {
			return
		}
		if uc.raise(currentUID, m.SenderID) && onAlert != nil {
			onAlert()
		}
	}, onError)
}

// raise sets the flag and reports whether this call transitioned it.
func (uc *NotifierUseCase) raise(uid, from string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	st := uc.state(uid)
	if st.raised {
		return false
	}
	st.raised = true
	st.from = from
	return true
}

// Alert reports the current flag value for uid.
func (uc *NotifierUseCase) Alert(uid string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.state(uid).raised
}

// Dismiss clears the flag explicitly.
func (uc *NotifierUseCase) Dismiss(uid string) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	st := uc.state(uid)
	st.raised = false
	st.from = ""
}

// ClearForPeer clears the flag when the conversation being opened belongs to
// the sender that raised it. Returns whether the flag was cleared.
func (uc *NotifierUseCase) ClearForPeer(uid, peer string) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	st := uc.state(uid)
	if st.raised && st.from == peer {
		st.raised = false
		st.from = ""
		return true
	}
	return false
}

// state returns the alert entry for uid, creating it lazily. Caller holds the
// lock.
func (uc *NotifierUseCase) state(uid string) *alertState {
	st, ok := uc.alerts[uid]
	if !ok {
		st = &alertState{}
		uc.alerts[uid] = st
	}
	return st
}
