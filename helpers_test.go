package authengine

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/zgoteam/authengine/password"
)

var (
	testKeyOnce    sync.Once
	testPrivatePEM []byte
	testPublicPEM  []byte
	testKeyErr     error
)

func testKeyPair(t testing.TB) (privatePEM, publicPEM []byte) {
	t.Helper()

	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			testKeyErr = err
			return
		}
		testPrivatePEM = pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
		publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			testKeyErr = err
			return
		}
		testPublicPEM = pem.EncodeToMemory(&pem.Block{
			Type:  "PUBLIC KEY",
			Bytes: publicDER,
		})
	})
	if testKeyErr != nil {
		t.Fatalf("test key generation failed: %v", testKeyErr)
	}
	return testPrivatePEM, testPublicPEM
}

func engineTestConfig(t testing.TB) Config {
	t.Helper()

	cfg := defaultConfig()
	cfg.JWT.PrivateKeyPEM, cfg.JWT.PublicKeyPEM = testKeyPair(t)
	// Keep Argon2 cheap in tests; validation floor is 8 MB.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	return cfg
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func newTestHasher(t testing.TB) *password.Hasher {
	t.Helper()

	h, err := password.NewHasher(password.Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

// memStore is an in-memory UserStore for engine tests.
type memStore struct {
	mu      sync.RWMutex
	byName  map[string]*User
	byEmail map[string]*User

	findErr error
}

func newMemStore() *memStore {
	return &memStore{
		byName:  make(map[string]*User),
		byEmail: make(map[string]*User),
	}
}

func (s *memStore) FindByUsername(_ context.Context, username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	user, ok := s.byName[strings.ToLower(username)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneTestUser(user), nil
}

func (s *memStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	user, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneTestUser(user), nil
}

func (s *memStore) Create(_ context.Context, user *User) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nameKey := strings.ToLower(user.Username)
	emailKey := strings.ToLower(user.Email)
	if _, exists := s.byName[nameKey]; exists {
		return nil, ErrUsernameTaken
	}
	if _, exists := s.byEmail[emailKey]; exists {
		return nil, ErrEmailTaken
	}

	stored := cloneTestUser(user)
	if stored.ID == "" {
		stored.ID = "user-" + nameKey
	}
	s.byName[nameKey] = stored
	s.byEmail[emailKey] = stored
	return cloneTestUser(stored), nil
}

func (s *memStore) SetRoles(username string, roles []Role) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.byName[strings.ToLower(username)]; ok {
		user.Roles = append([]Role(nil), roles...)
	}
}

func (s *memStore) Delete(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, ok := s.byName[strings.ToLower(username)]; ok {
		delete(s.byName, strings.ToLower(username))
		delete(s.byEmail, strings.ToLower(user.Email))
	}
}

func cloneTestUser(u *User) *User {
	out := *u
	out.Roles = append([]Role(nil), u.Roles...)
	return &out
}

func buildTestEngine(t *testing.T, cfg Config) (*Engine, *memStore, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	store := newMemStore()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, store, func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func registerTestUser(t *testing.T, engine *Engine, username, email, passwd string, roles ...string) *TokenPair {
	t.Helper()

	_, pair, err := engine.Register(context.Background(), RegisterRequest{
		Username: username,
		Email:    email,
		Password: passwd,
		Roles:    roles,
	})
	if err != nil {
		t.Fatalf("Register %s failed: %v", username, err)
	}
	return pair
}
