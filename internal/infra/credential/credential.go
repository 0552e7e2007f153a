// Package credential loads the mail password stored as a Fernet token next to
// its raw key, and provisions those two files.
package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"regulatory_notifier/internal/domain/notification"

	"github.com/fernet/fernet-go"
	"github.com/joho/godotenv"
)

const (
	passwordEntry = "Password"
	usernameEntry = "Username"

	// A negative TTL disables the token age check; stored tokens never expire.
	noTTL time.Duration = -1
)

var (
	ErrPasswordEntryMissing = errors.New("no Password entry in credential file")
	ErrDecryptFailed        = errors.New("token does not verify with the loaded key")
)

// LoadPassword reads the key at keyPath and decrypts the Password entry of the
// name=value file at credPath. Every failure is a *notification.CredentialError.
func LoadPassword(keyPath, credPath string) (string, error) {
	key, err := readKey(keyPath)
	if err != nil {
		return "", &notification.CredentialError{Path: keyPath, Err: err}
	}

	entries, err := godotenv.Read(credPath)
	if err != nil {
		return "", &notification.CredentialError{Path: credPath, Err: err}
	}
	token, ok := entries[passwordEntry]
	if !ok || strings.TrimSpace(token) == "" {
		return "", &notification.CredentialError{Path: credPath, Err: ErrPasswordEntryMissing}
	}

	plain := fernet.VerifyAndDecrypt([]byte(strings.TrimSpace(token)), noTTL, []*fernet.Key{key})
	if plain == nil {
		return "", &notification.CredentialError{Path: credPath, Err: ErrDecryptFailed}
	}
	return string(plain), nil
}

func readKey(path string) (*fernet.Key, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := fernet.DecodeKey(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decoding key: %w", err)
	}
	return key, nil
}

// Provision generates a new key, writes it to keyPath and writes credPath with
// the username and the encrypted password. Both files are created 0600 and
// replaced if present.
func Provision(keyPath, credPath, username, password string) error {
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	var key fernet.Key
	if err := key.Generate(); err != nil {
		return fmt.Errorf("generating key: %w", err)
	}
	token, err := fernet.EncryptAndSign([]byte(password), &key)
	if err != nil {
		return fmt.Errorf("encrypting password: %w", err)
	}

	if err := os.WriteFile(keyPath, []byte(key.Encode()), 0o600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}

	entries := map[string]string{passwordEntry: string(token)}
	if username != "" {
		entries[usernameEntry] = username
	}
	content, err := godotenv.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding credential file: %w", err)
	}
	if err := os.WriteFile(credPath, []byte(content+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}
	return nil
}

// FileSource loads the password from a key file and credential file pair.
type FileSource struct {
	KeyPath        string
	CredentialPath string
}

// Password implements the launcher's credential source.
func (s FileSource) Password() (string, error) {
	return LoadPassword(s.KeyPath, s.CredentialPath)
}
