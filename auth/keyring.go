// Package auth stores the signed-in owner in the system keyring.
// Watch history is only recorded while an owner is set.
package auth

import (
	"errors"
	"strings"

	"github.com/kitsune-cli/kitsune/constant"
	"github.com/zalando/go-keyring"
)

const user = "owner-id"

// ErrInvalidOwner is returned for a blank owner id.
var ErrInvalidOwner = errors.New("owner id must not be empty")

// SetOwner persists the owner id.
func SetOwner(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrInvalidOwner
	}
	return keyring.Set(constant.Kitsune, user, id)
}

// Owner returns the signed-in owner id, or "" when nobody is signed in.
func Owner() (string, error) {
	id, err := keyring.Get(constant.Kitsune, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return id, err
}

// Logout forgets the owner. Logging out twice is not an error.
func Logout() error {
	err := keyring.Delete(constant.Kitsune, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
