package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "igcrawl"
	keyringPrefix  = "instagram_"
	keyringIndex   = "account_index"
)

// KeyringStore implements CredentialStore using the system keychain.
// Keychains cannot be enumerated, so an index entry tracks the stored
// usernames.
type KeyringStore struct{}

// NewKeyringStore creates a keyring-based credential store, probing the
// keychain first so an unusable backend is detected up front.
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves credentials to the system keychain
func (k *KeyringStore) Store(account *Account) error {
	if account == nil || account.Username == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	if err := keyring.Set(keyringService, keyringPrefix+account.Username, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return k.addToIndex(account.Username)
}

// Retrieve gets credentials from the system keychain
func (k *KeyringStore) Retrieve(username string) (*Account, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+username)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var account Account
	if err := json.Unmarshal([]byte(data), &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal account: %w", err)
	}

	return &account, nil
}

// List returns all accounts recorded in the index entry
func (k *KeyringStore) List() ([]*Account, error) {
	usernames, err := k.readIndex()
	if err != nil {
		return []*Account{}, nil
	}

	var accounts []*Account
	for _, username := range usernames {
		if account, err := k.Retrieve(username); err == nil {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

// Delete removes credentials from the system keychain
func (k *KeyringStore) Delete(username string) error {
	if username == "" {
		return ErrInvalidCredentials
	}

	if err := keyring.Delete(keyringService, keyringPrefix+username); err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return k.removeFromIndex(username)
}

// Exists checks if credentials exist in the keychain
func (k *KeyringStore) Exists(username string) bool {
	_, err := k.Retrieve(username)
	return err == nil
}

func (k *KeyringStore) readIndex() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		return nil, err
	}
	if data == "" {
		return nil, nil
	}
	return strings.Split(data, ","), nil
}

func (k *KeyringStore) addToIndex(username string) error {
	usernames, _ := k.readIndex()
	for _, existing := range usernames {
		if existing == username {
			return nil
		}
	}
	usernames = append(usernames, username)
	return keyring.Set(keyringService, keyringIndex, strings.Join(usernames, ","))
}

func (k *KeyringStore) removeFromIndex(username string) error {
	usernames, err := k.readIndex()
	if err != nil {
		return nil
	}
	kept := usernames[:0]
	for _, existing := range usernames {
		if existing != username {
			kept = append(kept, existing)
		}
	}
	return keyring.Set(keyringService, keyringIndex, strings.Join(kept, ","))
}
