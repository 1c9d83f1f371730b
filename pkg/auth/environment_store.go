package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// It is read-only: Store and Delete report ErrStoreUnavailable.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables. The username
// argument is ignored since the environment holds one account at most.
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	sessionID := os.Getenv("IGCRAWL_SESSION_ID")
	csrfToken := os.Getenv("IGCRAWL_CSRF_TOKEN")

	if sessionID == "" || csrfToken == "" {
		return nil, ErrCredentialsNotFound
	}

	envUsername := os.Getenv("IGCRAWL_USERNAME")
	if envUsername == "" {
		envUsername = "default"
	}
	if username != "" && username != envUsername {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     envUsername,
		SessionID:    sessionID,
		CSRFToken:    csrfToken,
		UserID:       os.Getenv("IGCRAWL_USER_ID"),
		UserAgent:    os.Getenv("IGCRAWL_USER_AGENT"),
		LastModified: time.Now(),
	}, nil
}

// List returns the environment account if one is configured
func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		if err == ErrCredentialsNotFound {
			return []*Account{}, nil
		}
		return nil, err
	}
	return []*Account{account}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials are configured
func (e *EnvironmentStore) Exists(username string) bool {
	account, err := e.Retrieve(username)
	return err == nil && account != nil
}
