package usecase

import "context"

type FirebaseAuthClient interface {
	CreateUser(ctx context.Context, email, password, displayName string) (string, error)
	VerifyToken(ctx context.Context, token string) (string, error)
	SignInWithEmailPassword(email, password string) (idToken, refreshToken string, err error)
	RefreshIDToken(refreshToken string) (idToken, newRefreshToken string, err error)
	GetUserProfile(ctx context.Context, uid string) (displayName, email, photoURL string, err error)
}
