package config

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const (
	keyringService = appName

	// APIKeySecret is the keyring entry holding the LLM API key
	APIKeySecret = "llm_api_key"
)

// ErrSecretNotFound is returned when the keyring has no entry for a name
var ErrSecretNotFound = errors.New("secret not found")

// SecretStore reads and writes named secrets
type SecretStore interface {
	Get(name string) (string, error)
	Set(name, value string) error
	Remove(name string) error
}

// KeyringStore keeps secrets in the OS keychain, Secret Service or
// Windows Credential Manager
type KeyringStore struct {
	service string
}

// NewKeyringStore creates a store for the application's keyring service
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{service: keyringService}
}

func (s *KeyringStore) open() (keyring.Keyring, error) {
	kr, err := keyring.Open(keyring.Config{
		ServiceName: s.service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
		},
		LibSecretCollectionName:  "login",
		WinCredPrefix:            s.service,
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring for service '%s': %w", s.service, err)
	}
	return kr, nil
}

func (s *KeyringStore) Get(name string) (string, error) {
	kr, err := s.open()
	if err != nil {
		return "", err
	}

	item, err := kr.Get(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrSecretNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read secret '%s': %w", name, err)
	}
	return string(item.Data), nil
}

func (s *KeyringStore) Set(name, value string) error {
	kr, err := s.open()
	if err != nil {
		return err
	}

	err = kr.Set(keyring.Item{
		Key:         name,
		Data:        []byte(value),
		Label:       fmt.Sprintf("%s (%s)", name, s.service),
		Description: "Managed by " + s.service,
	})
	if err != nil {
		return fmt.Errorf("failed to store secret '%s': %w", name, err)
	}
	return nil
}

func (s *KeyringStore) Remove(name string) error {
	kr, err := s.open()
	if err != nil {
		return err
	}

	err = kr.Remove(name)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrSecretNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete secret '%s': %w", name, err)
	}
	return nil
}
