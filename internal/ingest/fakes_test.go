package ingest

import (
	"context"
	"crypto/ed25519"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/eventcollector/internal/domain"
)

// memStore is an in-memory record store. Failure hooks let tests break
// individual operations.
type memStore struct {
	mu         sync.Mutex
	supporters []domain.Supporter
	artifacts  []domain.Artifact
	versions   [][]domain.VersionUpdate

	findCalls   int
	insertCalls int

	findErr       error
	insertSupErr  error
	insertArtErr  func(a domain.Artifact) error
	updateErr     error
	uniqueEnforce bool
}

func (m *memStore) FindSupporters(ctx context.Context, clientID, publicKey string) ([]domain.Supporter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []domain.Supporter
	for _, s := range m.supporters {
		if s.ClientID == clientID && s.PublicKey == publicKey {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) InsertSupporter(ctx context.Context, s domain.Supporter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	if m.insertSupErr != nil {
		return m.insertSupErr
	}
	if m.uniqueEnforce {
		for _, e := range m.supporters {
			if e.ClientID == s.ClientID && e.PublicKey == s.PublicKey {
				return domain.ErrDuplicateSupporter
			}
		}
	}
	m.supporters = append(m.supporters, s)
	return nil
}

func (m *memStore) InsertArtifact(ctx context.Context, a domain.Artifact) error {
	if m.insertArtErr != nil {
		if err := m.insertArtErr(a); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts = append(m.artifacts, a)
	return nil
}

func (m *memStore) UpdateSupporterVersions(ctx context.Context, updates []domain.VersionUpdate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return 0, m.updateErr
	}
	cp := append([]domain.VersionUpdate(nil), updates...)
	m.versions = append(m.versions, cp)
	return int64(len(updates)), nil
}

func (m *memStore) artifactCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.artifacts)
}

func (m *memStore) supporterCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.supporters)
}

// memBlobs is an in-memory blob store.
type memBlobs struct {
	mu       sync.Mutex
	files    map[string][]byte
	dirs     map[string]int
	writeErr func(path string) error
	dirErr   error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{files: map[string][]byte{}, dirs: map[string]int{}}
}

func (b *memBlobs) WriteFile(ctx context.Context, path string, data []byte) error {
	if b.writeErr != nil {
		if err := b.writeErr(path); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[path] = append([]byte(nil), data...)
	return nil
}

func (b *memBlobs) EnsureDirectory(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dirs[path]++
	return b.dirErr
}

func (b *memBlobs) fileCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.files)
}

// MockAlarms records alarm deliveries.
type MockAlarms struct {
	mock.Mock
}

func (m *MockAlarms) ReportAlarm(ctx context.Context, a domain.Alarm) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

// MockCache is a testify mock of SupporterCache.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, clientID, publicKey string) (domain.Supporter, bool, error) {
	args := m.Called(ctx, clientID, publicKey)
	return args.Get(0).(domain.Supporter), args.Bool(1), args.Error(2)
}

func (m *MockCache) Set(ctx context.Context, s domain.Supporter) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

var errBoom = errors.New("boom")

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func clockAt(t time.Time) func() time.Time { return func() time.Time { return t } }

type keypair struct {
	pub  string
	priv ed25519.PrivateKey
}

func newKeypair(t *testing.T) keypair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return keypair{pub: base58.Encode(pub), priv: priv}
}

func (k keypair) sign(body []byte) string {
	return base58.Encode(ed25519.Sign(k.priv, body))
}

// signedRequest builds a request carrying every required header.
func signedRequest(k keypair, clientID string, body []byte) Request {
	return Request{
		Headers: map[string]string{
			"content-length":     "42",
			"x-yttrex-build":     "build-1",
			"x-yttrex-version":   "1.2.3",
			"x-yttrex-userid":    clientID,
			"x-yttrex-publickey": k.pub,
			"x-yttrex-signature": k.sign(body),
		},
		Body: body,
	}
}

var nop = zerolog.Nop()
