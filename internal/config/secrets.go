package config

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "sqlzen"

// StoreSecret moves c's URL into the OS keyring and marks the profile.
func StoreSecret(c *Connection) error {
	if err := keyring.Set(keyringService, c.Name, c.URL); err != nil {
		return fmt.Errorf("store %q in keyring: %w", c.Name, err)
	}
	c.Keyring = true
	c.URL = ""
	return nil
}

// ResolveURL returns the connection string, reading it from the keyring
// when the profile keeps it there.
func (c Connection) ResolveURL() (string, error) {
	if !c.Keyring || c.URL != "" {
		return c.URL, nil
	}
	secret, err := keyring.Get(keyringService, c.Name)
	if err != nil {
		return "", fmt.Errorf("read %q from keyring: %w", c.Name, err)
	}
	return secret, nil
}

// DeleteSecret removes the keyring entry for name. A missing entry is not
// an error.
func DeleteSecret(name string) error {
	err := keyring.Delete(keyringService, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete %q from keyring: %w", name, err)
	}
	return nil
}
