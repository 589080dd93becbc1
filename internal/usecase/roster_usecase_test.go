package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	storerepo "kirim/internal/adapter/repository"
	"kirim/internal/domain/entity"
)

func rosterUIDs(users []*entity.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.UID)
	}
	return out
}

func TestRosterExcludesCurrentUser(t *testing.T) {
	store := storerepo.NewMemoryStore()
	roster := NewRosterUseCase(store)

	seedUser(t, store, &entity.User{UID: "a", DisplayName: "Alice"})
	seedUser(t, store, &entity.User{UID: "b", DisplayName: "Bob"})
	seedUser(t, store, &entity.User{UID: "c", DisplayName: "Cara"})

	var emitted [][]*entity.User
	dispose := roster.Subscribe("a", func(users []*entity.User) {
		emitted = append(emitted, users)
	}, nil)
	defer dispose()

	assert.Len(t, emitted, 1)
	assert.Equal(t, []string{"b", "c"}, rosterUIDs(emitted[0]))
}

func TestRosterUpdatesSingleEntryInPlace(t *testing.T) {
	ctx := context.Background()
	store := storerepo.NewMemoryStore()
	roster := NewRosterUseCase(store)

	seedUser(t, store, &entity.User{UID: "b", DisplayName: "Bob"})
	seedUser(t, store, &entity.User{UID: "c", DisplayName: "Cara"})

	var emitted [][]*entity.User
	dispose := roster.Subscribe("a", func(users []*entity.User) {
		emitted = append(emitted, users)
	}, nil)
	defer dispose()

	assert.NoError(t, store.Update(ctx, "users/b", map[string]interface{}{"isOnline": true}))

	last := emitted[len(emitted)-1]
	assert.Equal(t, []string{"b", "c"}, rosterUIDs(last))
	assert.True(t, last[0].IsOnline)
	assert.Equal(t, "Bob", last[0].DisplayName)
	assert.Equal(t, "Cara", last[1].DisplayName)
	assert.False(t, last[1].IsOnline)
}

func TestRosterPicksUpNewUsers(t *testing.T) {
	store := storerepo.NewMemoryStore()
	roster := NewRosterUseCase(store)

	seedUser(t, store, &entity.User{UID: "b", DisplayName: "Bob"})

	var emitted [][]*entity.User
	dispose := roster.Subscribe("a", func(users []*entity.User) {
		emitted = append(emitted, users)
	}, nil)
	defer dispose()

	seedUser(t, store, &entity.User{UID: "d", DisplayName: "Dana"})

	last := emitted[len(emitted)-1]
	assert.Equal(t, []string{"b", "d"}, rosterUIDs(last))
}

func TestRosterFallsBackToChildKeyForUID(t *testing.T) {
	ctx := context.Background()
	store := storerepo.NewMemoryStore()
	roster := NewRosterUseCase(store)

	// Record without a uid field, as written by older clients.
	assert.NoError(t, store.Write(ctx, "users/b", map[string]interface{}{"displayName": "Bob"}))

	var emitted [][]*entity.User
	dispose := roster.Subscribe("a", func(users []*entity.User) {
		emitted = append(emitted, users)
	}, nil)
	defer dispose()

	assert.Equal(t, []string{"b"}, rosterUIDs(emitted[0]))
}

func TestRosterDisposerStopsDelivery(t *testing.T) {
	store := storerepo.NewMemoryStore()
	roster := NewRosterUseCase(store)

	var emitted [][]*entity.User
	dispose := roster.Subscribe("a", func(users []*entity.User) {
		emitted = append(emitted, users)
	}, nil)
	dispose()

	seedUser(t, store, &entity.User{UID: "b"})
	assert.Len(t, emitted, 1)
}
