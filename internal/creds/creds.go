// Package creds is the encrypted credential store. Values are sealed with
// ChaCha20-Poly1305 under a key generated on first use; skills receive them
// as environment variables at spawn time and nothing else ever sees
// plaintext on disk.
package creds

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrNotFound is returned for credentials that were never set.
var ErrNotFound = errors.New("creds: credential not found")

const sealedPrefix = "sealed$v1$"

// Store holds sealed credentials in <dir>/creds.enc keyed by
// "<skill>/<name>".
type Store struct {
	mu     sync.Mutex
	path   string
	aead   cipher.AEAD
	logger *slog.Logger
}

// Open loads (or initializes) the store under dir. The key lives next to the
// store in key.bin with mode 0600.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creds: create dir: %w", err)
	}
	key, err := loadOrCreateKey(filepath.Join(dir, "key.bin"))
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creds: init cipher: %w", err)
	}
	return &Store{
		path:   filepath.Join(dir, "creds.enc"),
		aead:   aead,
		logger: logger.With("component", "creds"),
	}, nil
}

// Set seals and stores a credential value for a skill.
func (s *Store) Set(skill, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	m[credKey(skill, name)] = sealed
	if err := s.save(m); err != nil {
		return err
	}
	s.logger.Info("credential stored", "skill", skill, "name", name)
	return nil
}

// Get unseals one credential.
func (s *Store) Get(skill, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return "", err
	}
	sealed, ok := m[credKey(skill, name)]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrNotFound, skill, name)
	}
	return s.unseal(sealed)
}

// Delete removes a credential.
func (s *Store) Delete(skill, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	key := credKey(skill, name)
	if _, ok := m[key]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, skill, name)
	}
	delete(m, key)
	if err := s.save(m); err != nil {
		return err
	}
	s.logger.Info("credential deleted", "skill", skill, "name", name)
	return nil
}

// Names lists the credential names stored for a skill, sorted. Values are
// never listed.
func (s *Store) Names(skill string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return nil, err
	}
	prefix := skill + "/"
	var out []string
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			out = append(out, strings.TrimPrefix(k, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}

func credKey(skill, name string) string {
	return skill + "/" + name
}

func (s *Store) seal(value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("creds: nonce: %w", err)
	}
	box := s.aead.Seal(nonce, nonce, []byte(value), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(box), nil
}

func (s *Store) unseal(sealed string) (string, error) {
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", fmt.Errorf("creds: unrecognized sealed format")
	}
	box, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("creds: decode: %w", err)
	}
	if len(box) < s.aead.NonceSize() {
		return "", fmt.Errorf("creds: sealed value too short")
	}
	nonce, ct := box[:s.aead.NonceSize()], box[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("creds: unseal: %w", err)
	}
	return string(plain), nil
}

func (s *Store) load() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("creds: read store: %w", err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("creds: decode store: %w", err)
	}
	return m, nil
}

func (s *Store) save(m map[string]string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("creds: encode store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("creds: write store: %w", err)
	}
	return os.Rename(tmp, s.path)
}

func loadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("creds: key file %s has wrong size", path)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("creds: read key: %w", err)
	}
	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("creds: generate key: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("creds: write key: %w", err)
	}
	return key, nil
}
