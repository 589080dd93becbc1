package firebase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDevAuthRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := NewDevAuthClient()

	uid, err := client.CreateUser(ctx, "alice@example.com", "secret", "Alice")
	assert.NoError(t, err)
	assert.NotEmpty(t, uid)

	token, refreshToken, err := client.SignInWithEmailPassword("alice@example.com", "secret")
	assert.NoError(t, err)
	assert.Equal(t, uid, token)
	assert.NotEmpty(t, refreshToken)

	gotUID, err := client.VerifyToken(ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, uid, gotUID)

	idToken, err := client.VerifyIDToken(ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, uid, idToken.UID)

	displayName, email, _, err := client.GetUserProfile(ctx, uid)
	assert.NoError(t, err)
	assert.Equal(t, "Alice", displayName)
	assert.Equal(t, "alice@example.com", email)
}

func TestDevAuthRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	client := NewDevAuthClient()

	_, err := client.CreateUser(ctx, "alice@example.com", "secret", "Alice")
	assert.NoError(t, err)

	_, _, err = client.SignInWithEmailPassword("alice@example.com", "wrong")
	assert.Error(t, err)

	_, _, err = client.SignInWithEmailPassword("nobody@example.com", "secret")
	assert.Error(t, err)

	_, err = client.VerifyToken(ctx, "not-a-token")
	assert.Error(t, err)

	_, _, err = client.RefreshIDToken("not-a-token")
	assert.Error(t, err)
}

func TestDevAuthRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	client := NewDevAuthClient()

	_, err := client.CreateUser(ctx, "alice@example.com", "secret", "Alice")
	assert.NoError(t, err)

	_, err = client.CreateUser(ctx, "alice@example.com", "other", "Alice Again")
	assert.Error(t, err)
}
