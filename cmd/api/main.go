package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"kirim/internal/adapter/api"
	"kirim/internal/adapter/api/handler"
	apimiddleware "kirim/internal/adapter/api/middleware"
	"kirim/internal/adapter/api/router"
	"kirim/internal/adapter/repository"
	domainrepo "kirim/internal/domain/repository"
	"kirim/internal/infrastructure/firebase"
	"kirim/internal/infrastructure/websocket"
	"kirim/internal/usecase"
	"kirim/pkg/config"
)

const databaseScope = "https://www.googleapis.com/auth/firebase.database"
const emailScope = "https://www.googleapis.com/auth/userinfo.email"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()

	var store domainrepo.RealtimeStore
	var storeClose func(context.Context)
	var tokenVerifier apimiddleware.TokenVerifier
	var firebaseAuthClient usecase.FirebaseAuthClient

	if cfg.IsDevelopment() && cfg.FirebaseDatabaseURL == "" {
		// Credential-free development mode: no Firebase project required.
		log.Printf("No database URL configured, using in-memory store and dev auth")
		store = repository.NewMemoryStore()
		storeClose = func(context.Context) {}
		devAuth := firebase.NewDevAuthClient()
		tokenVerifier = devAuth
		firebaseAuthClient = devAuth
	} else {
		tokenSource, opt := loadCredentials(ctx, cfg)

		var opts []option.ClientOption
		if opt != nil {
			opts = append(opts, opt)
		}

		firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{
			ProjectID:   cfg.FirebaseProject,
			DatabaseURL: cfg.FirebaseDatabaseURL,
		}, opts...)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase: %v", err)
		}

		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Firebase Auth: %v", err)
		}

		dbClient, err := firebaseApp.Database(ctx)
		if err != nil {
			log.Fatalf("Failed to initialize Realtime Database: %v", err)
		}

		rtdb := repository.NewRTDBStore(dbClient, cfg.FirebaseDatabaseURL, tokenSource)
		store = rtdb
		storeClose = rtdb.Close
		tokenVerifier = authClient
		firebaseAuthClient = firebase.NewFirebaseAuthClient(authClient, cfg.FirebaseApiKey)
	}

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	presenceUseCase := usecase.NewPresenceUseCase(store)
	rosterUseCase := usecase.NewRosterUseCase(store)
	conversationUseCase := usecase.NewConversationUseCase(store)
	previewUseCase := usecase.NewPreviewUseCase(store)
	notifierUseCase := usecase.NewNotifierUseCase(store)
	authUseCase := usecase.NewAuthUseCase(store, firebaseAuthClient)

	sessions := usecase.NewSessionManager(
		presenceUseCase,
		rosterUseCase,
		conversationUseCase,
		previewUseCase,
		notifierUseCase,
		wsManager,
	)

	// A vanished UI is a disconnect: tear the session down so its listeners
	// are released and presence goes offline.
	wsManager.SetOnDisconnect(func(userID string) {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		sessions.Stop(stopCtx, userID)
	})

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(tokenVerifier)

	authHandler := handler.NewAuthHandler(authUseCase, sessions)
	chatHandler := handler.NewChatHandler(sessions)
	wsHandler := handler.NewWebSocketHandler(wsManager, sessions, authMiddleware)
	healthHandler := handler.NewHealthHandler()

	router.Setup(e, authHandler, chatHandler, wsHandler, healthHandler, authMiddleware)

	go func() {
		log.Printf("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown failed: %v", err)
	}
	sessions.StopAll(shutdownCtx)
	storeClose(shutdownCtx)
}

// loadCredentials resolves the service account: FIREBASE_SERVICE_ACCOUNT_JSON
// wins (for production), then the configured file path, then application
// default credentials.
func loadCredentials(ctx context.Context, cfg *config.Config) (oauth2.TokenSource, option.ClientOption) {
	if cfg.ServiceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		data := []byte(cfg.ServiceAccountJSON)
		return tokenSourceFromJSON(ctx, data), option.WithCredentialsJSON(data)
	}

	data, err := os.ReadFile(cfg.ServiceAccountPath)
	if err != nil {
		log.Printf("No service account file at %s, falling back to application default credentials", cfg.ServiceAccountPath)
		ts, err := google.DefaultTokenSource(ctx, databaseScope, emailScope)
		if err != nil {
			log.Fatalf("Failed to resolve default credentials: %v", err)
		}
		return ts, nil
	}

	log.Printf("Using Firebase service account from file: %s", cfg.ServiceAccountPath)
	return tokenSourceFromJSON(ctx, data), option.WithCredentialsFile(cfg.ServiceAccountPath)
}

func tokenSourceFromJSON(ctx context.Context, data []byte) oauth2.TokenSource {
	creds, err := google.CredentialsFromJSON(ctx, data, databaseScope, emailScope)
	if err != nil {
		log.Fatalf("Failed to parse service account credentials: %v", err)
	}
	return creds.TokenSource
}
