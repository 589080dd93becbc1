package usecase

import (
	"sync"

	"kirim/internal/domain/entity"
	"kirim/internal/domain/repository"
	"kirim/pkg/logger"
)

// RosterUseCase keeps a live, deduplicated list of every user except the
// current one, updated as individual records change.
type RosterUseCase struct {
	store repository.RealtimeStore
}

func NewRosterUseCase(store repository.RealtimeStore) *RosterUseCase {
	return &RosterUseCase{store: store}
}

// Subscribe emits the full roster on every change. Full snapshots rebuild the
// local set; a single-record change replaces that one entry in place and
// re-emits. It never rebuilds on a single change, so unrelated entries keep
// their identity (and the previews fetched for them). The disposer releases
// both listeners.
func (uc *RosterUseCase) Subscribe(currentUID string, emit func([]*entity.User), onError func(error)) repository.Disposer {
	var mu sync.Mutex
	var order []string
	users := make(map[string]*entity.User)

	snapshot := func() []*entity.User {
		out := make([]*entity.User, 0, len(order))
		for _, uid := range order {
			out = append(out, users[uid])
		}
		return out
	}

	disposeValue := uc.store.SubscribeCollection("users", repository.Query{}, func(snap repository.Snapshot) {
		mu.Lock()
		order = order[:0]
		users = make(map[string]*entity.User)
		for _, child := range snap.Children {
			var u entity.User
			if err := child.Decode(&u); err != nil {
				logger.Warn("skipping malformed user record %s: %v", child.Key, err)
				continue
			}
			if u.UID == "" {
				u.UID = child.Key
			}
			if u.UID == currentUID {
				continue
			}
			order = append(order, u.UID)
			users[u.UID] = &u
		}
		out := snapshot()
		mu.Unlock()
		emit(out)
	}, onError)

	disposeChanged := uc.store.SubscribeChildChanged("users", func(child repository.Child) {
		var u entity.User
		if err := child.Decode(&u); err != nil {
			logger.Warn("skipping malformed user change %s: %v", child.Key, err)
			return
		}
		if u.UID == "" {
			u.UID = child.Key
		}

		mu.Lock()
		if _, tracked := users[u.UID]; !tracked {
			// Additions arrive through the full snapshot listener.
			mu.Unlock()
			return
		}
		users[u.UID] = &u
		out := snapshot()
		mu.Unlock()
		emit(out)
	})

	return func() {
		disposeValue()
		disposeChanged()
	}
}
