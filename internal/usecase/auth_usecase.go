package usecase

import (
	"context"

	"kirim/internal/domain/entity"
	"kirim/internal/domain/repository"
	"kirim/pkg/errors"
	"kirim/pkg/logger"
)

type AuthUseCase struct {
	store        repository.RealtimeStore
	firebaseAuth FirebaseAuthClient
}

func NewAuthUseCase(store repository.RealtimeStore, firebaseAuth FirebaseAuthClient) *AuthUseCase {
	return &AuthUseCase{
		store:        store,
		firebaseAuth: firebaseAuth,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

type AuthResult struct {
	User         *entity.User
	Token        string
	RefreshToken string
}

// Register creates the auth account, writes the user's record, and signs the
// new user in.
func (uc *AuthUseCase) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	uid, err := uc.firebaseAuth.CreateUser(ctx, input.Email, input.Password, input.DisplayName)
	if err != nil {
		return nil, errors.Internal("Failed to create user in authentication provider", err)
	}

	user := &entity.User{
		UID:         uid,
		DisplayName: input.DisplayName,
		Email:       input.Email,
		IsOnline:    true,
	}
	if err := uc.writeUserRecord(ctx, user); err != nil {
		return nil, err
	}

	token, refreshToken, err := uc.firebaseAuth.SignInWithEmailPassword(input.Email, input.Password)
	if err != nil {
		return nil, errors.Internal("Failed to generate authentication token", err)
	}

	return &AuthResult{User: user, Token: token, RefreshToken: refreshToken}, nil
}

// Login exchanges credentials for a token and overwrites the user's record
// with the auth provider's current profile, online.
func (uc *AuthUseCase) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	token, refreshToken, err := uc.firebaseAuth.SignInWithEmailPassword(email, password)
	if err != nil {
		logger.Warn("login failed for %s: %v", email, err)
		return nil, errors.Unauthorized("Invalid credentials", err)
	}

	uid, err := uc.firebaseAuth.VerifyToken(ctx, token)
	if err != nil {
		return nil, errors.Internal("Failed to verify token", err)
	}

	displayName, profileEmail, photoURL, err := uc.firebaseAuth.GetUserProfile(ctx, uid)
	if err != nil {
		return nil, errors.NotFound("User", err)
	}
	if displayName == "" {
		displayName = "Anonymous"
	}

	user := &entity.User{
		UID:         uid,
		DisplayName: displayName,
		Email:       profileEmail,
		PhotoURL:    photoURL,
		IsOnline:    true,
	}
	if err := uc.writeUserRecord(ctx, user); err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Token: token, RefreshToken: refreshToken}, nil
}

// Refresh exchanges a refresh token for a fresh ID token and the profile it
// belongs to. The user record is not rewritten; only authentication does that.
func (uc *AuthUseCase) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	token, newRefreshToken, err := uc.firebaseAuth.RefreshIDToken(refreshToken)
	if err != nil {
		return nil, errors.Unauthorized("Invalid refresh token", err)
	}

	uid, err := uc.firebaseAuth.VerifyToken(ctx, token)
	if err != nil {
		return nil, errors.Internal("Failed to verify refreshed token", err)
	}

	displayName, email, photoURL, err := uc.firebaseAuth.GetUserProfile(ctx, uid)
	if err != nil {
		return nil, errors.NotFound("User", err)
	}

	user := &entity.User{
		UID:         uid,
		DisplayName: displayName,
		Email:       email,
		PhotoURL:    photoURL,
		IsOnline:    true,
	}

	return &AuthResult{User: user, Token: token, RefreshToken: newRefreshToken}, nil
}

// writeUserRecord overwrites users/<uid> in full. Every successful
// authentication refreshes the whole record; only presence touches single
// fields afterwards.
func (uc *AuthUseCase) writeUserRecord(ctx context.Context, user *entity.User) error {
	if err := uc.store.Write(ctx, "users/"+user.UID, user); err != nil {
		return errors.Internal("Failed to write user record", err)
	}
	return nil
}
