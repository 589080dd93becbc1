package usecase

import (
	"context"
	"sync"

	"kirim/internal/domain/repository"
	"kirim/pkg/logger"
)

// PresenceUseCase maintains the isOnline flag of authenticated users: an
// immediate online write on activation plus a disconnect-triggered offline
// write registered with the store, and an explicit offline write on logout.
type PresenceUseCase struct {
	store repository.RealtimeStore

	mu     sync.Mutex
	active map[string]bool
}

func NewPresenceUseCase(store repository.RealtimeStore) *PresenceUseCase {
	return &PresenceUseCase{
		store:  store,
		active: make(map[string]bool),
	}
}

// Activate marks the user online and registers the store-side offline write
// that fires if the connection terminates without an orderly logout.
// Idempotent per session: repeat calls for an active uid are no-ops.
func (uc *PresenceUseCase) Activate(ctx context.Context, uid string) error {
	uc.mu.Lock()
	if uc.active[uid] {
		uc.mu.Unlock()
		return nil
	}
	uc.mu.Unlock()

	if err := uc.store.Update(ctx, "users/"+uid, map[string]interface{}{"isOnline": true}); err != nil {
		return err
	}
	if err := uc.store.RegisterOnDisconnect(ctx, "users/"+uid+"/isOnline", false); err != nil {
		// Presence can go stale without the fallback write; the session works.
		logger.Warn("failed to register on-disconnect for %s: %v", uid, err)
	}

	uc.mu.Lock()
	uc.active[uid] = true
	uc.mu.Unlock()
	return nil
}

// Deactivate writes isOnline=false explicitly. Must run before the session's
// token is invalidated; after that the write can no longer be authorized.
// The caller logs the returned error and proceeds with teardown regardless.
func (uc *PresenceUseCase) Deactivate(ctx context.Context, uid string) error {
	uc.mu.Lock()
	delete(uc.active, uid)
	uc.mu.Unlock()

	return uc.store.Update(ctx, "users/"+uid, map[string]interface{}{"isOnline": false})
}
