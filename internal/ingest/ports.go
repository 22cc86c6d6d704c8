package ingest

import (
	"context"

	"example.com/eventcollector/internal/domain"
)

// SupporterStore is the record-store view used to resolve identities.
type SupporterStore interface {
	FindSupporters(ctx context.Context, clientID, publicKey string) ([]domain.Supporter, error)
	// InsertSupporter returns domain.ErrDuplicateSupporter when the identity
	// already exists.
	InsertSupporter(ctx context.Context, s domain.Supporter) error
}

// SupporterCache is an optional read-through cache in front of SupporterStore.
type SupporterCache interface {
	Get(ctx context.Context, clientID, publicKey string) (domain.Supporter, bool, error)
	Set(ctx context.Context, s domain.Supporter) error
}

// ArtifactStore is the record-store view used to persist artifacts.
type ArtifactStore interface {
	InsertArtifact(ctx context.Context, a domain.Artifact) error
}

// VersionStore persists supporter version updates.
type VersionStore interface {
	UpdateSupporterVersions(ctx context.Context, updates []domain.VersionUpdate) (int64, error)
}

// BlobStore holds raw payload bytes addressed by slash-separated paths.
type BlobStore interface {
	WriteFile(ctx context.Context, path string, data []byte) error
	// EnsureDirectory must succeed when the directory already exists.
	EnsureDirectory(ctx context.Context, path string) error
}

// AlarmReporter delivers alarms to an external channel.
type AlarmReporter interface {
	ReportAlarm(ctx context.Context, a domain.Alarm) error
}
