package gcp

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// CredentialsPathEnv points to a service-account JSON for local development.
// When unset the Admin SDK falls back to application default credentials.
const CredentialsPathEnv = "FIREBASE_CONFIG"

// InitFirebaseAuth initializes the Firebase App and returns an Auth client.
func InitFirebaseAuth(ctx context.Context) (*firebase.App, *firebaseauth.Client, error) {
	var app *firebase.App
	var err error

	if path, found := os.LookupEnv(CredentialsPathEnv); found && path != "" {
		app, err = firebase.NewApp(ctx, nil, option.WithCredentialsFile(path))
	} else {
		app, err = firebase.NewApp(ctx, nil)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("init firebase app: %w", err)
	}

	fbAuth, err := app.Auth(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("init firebase auth: %w", err)
	}

	return app, fbAuth, nil
}
