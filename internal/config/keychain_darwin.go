//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os/exec"
)

// errSecItemNotFound is the exit status of `security` when no item matches.
const errSecItemNotFound = 44

// keychainGet reads a generic password from the login keychain.
func keychainGet(service, account string) ([]byte, error) {
	out, err := exec.Command("security", "find-generic-password", "-s", service, "-a", account, "-w").Output()
	if err == nil {
		return out, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == errSecItemNotFound {
		return nil, errSecretNotFound
	}
	return nil, fmt.Errorf("reading keychain item %s/%s: %w", service, account, err)
}
