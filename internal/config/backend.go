package config

import "errors"

// secretService is the secret store service every nlens secret lives under.
// Each secret key in specs names its own account within it.
const secretService = "nlens"

// errSecretNotFound is returned by keychainGet when the store has no entry
// for the account.
var errSecretNotFound = errors.New("secret not found")

// Backend is the persistent store behind `nlens config set`: UserDefaults
// on macOS, a JSON file elsewhere. Secrets never go through it.
type Backend interface {
	GetString(key string) (val string, ok bool, err error)
	GetInt(key string) (val int, ok bool, err error)
	SetString(key, val string) error
	SetInt(key string, val int) error
	Delete(key string) error
}
