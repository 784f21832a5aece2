// Package auth verifies login attempts and seeds the administrator account.
package auth

import (
	"errors"
	"fmt"

	"github.com/labstack/gommon/log"

	"github.com/stockui/stock-ui/model"
	"github.com/stockui/stock-ui/store"
	"github.com/stockui/stock-ui/util"
)

// ErrInvalidCredentials is returned for an unknown username and for a wrong password alike
var ErrInvalidCredentials = errors.New("invalid username or password")

// Verify checks a username and password against the stored bcrypt hash
func Verify(db store.IStore, username, password string) (model.User, error) {
	user, err := db.GetUserByName(username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.User{}, ErrInvalidCredentials
		}
		return model.User{}, err
	}

	match, err := util.VerifyHash(user.PasswordHash, password)
	if err != nil {
		log.Errorf("Cannot verify password hash of user %s: %v", username, err)
		return model.User{}, ErrInvalidCredentials
	}
	if !match {
		return model.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// SeedAdmin creates the user unless it already exists.
// passwordHash takes precedence over password when set.
func SeedAdmin(db store.IStore, username, password, passwordHash string) error {
	_, err := db.GetUserByName(username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if passwordHash == "" {
		passwordHash, err = util.HashPassword(password)
		if err != nil {
			return err
		}
	}

	user := model.User{Username: username, PasswordHash: passwordHash}
	if err := db.CreateUser(&user); err != nil {
		return fmt.Errorf("cannot create user %s: %w", username, err)
	}
	log.Infof("Created user %s", username)
	return nil
}
