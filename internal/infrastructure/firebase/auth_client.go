package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"firebase.google.com/go/v4/auth"

	"kirim/pkg/errors"
)

type FirebaseAuthClient struct {
	client *auth.Client
	apiKey string
}

func NewFirebaseAuthClient(client *auth.Client, apiKey string) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
		apiKey: apiKey,
	}
}

func (f *FirebaseAuthClient) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(displayName)

	user, err := f.client.CreateUser(ctx, params)
	if err != nil {
		return "", err
	}

	return user.UID, nil
}

func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (string, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", err
	}

	return result.UID, nil
}

// GetUserProfile fetches the auth provider's view of a user (display name,
// email, photo URL).
func (f *FirebaseAuthClient) GetUserProfile(ctx context.Context, uid string) (string, string, string, error) {
	user, err := f.client.GetUser(ctx, uid)
	if err != nil {
		return "", "", "", err
	}
	return user.DisplayName, user.Email, user.PhotoURL, nil
}

// SignInWithEmailPassword exchanges credentials for an ID token and a refresh
// token through the Identity Toolkit REST API; the admin SDK has no password
// sign-in.
func (f *FirebaseAuthClient) SignInWithEmailPassword(email, password string) (string, string, error) {
	url := fmt.Sprintf("https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword?key=%s", f.apiKey)

	payload, err := json.Marshal(map[string]interface{}{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return "", "", err
	}

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return "", "", errors.Transport("Failed to reach authentication provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", "", errors.Unauthorized("Sign in failed: "+errResp.Error.Message, nil)
	}

	var result struct {
		IDToken      string `json:"idToken"`
		RefreshToken string `json:"refreshToken"`
		LocalID      string `json:"localId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", errors.Internal("Failed to parse sign in response", err)
	}

	return result.IDToken, result.RefreshToken, nil
}

// RefreshIDToken exchanges a refresh token for a fresh ID token through the
// Secure Token REST API.
func (f *FirebaseAuthClient) RefreshIDToken(refreshToken string) (string, string, error) {
	endpoint := fmt.Sprintf("https://securetoken.googleapis.com/v1/token?key=%s", f.apiKey)

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	resp, err := http.PostForm(endpoint, form)
	if err != nil {
		return "", "", errors.Transport("Failed to reach authentication provider", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", errors.Unauthorized("Refresh token rejected", nil)
	}

	var result struct {
		IDToken      string `json:"id_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", errors.Internal("Failed to parse refresh response", err)
	}

	return result.IDToken, result.RefreshToken, nil
}
