package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSignatureMismatch is terminal for a request and never escalated.
	ErrSignatureMismatch = errors.New("signature does not match request body")

	// ErrDuplicateSupporter is returned by a record store when the
	// (clientId, publicKey) uniqueness constraint rejects an insert.
	ErrDuplicateSupporter = errors.New("supporter already exists")

	// ErrDuplicateArtifact is returned by a record store when an artifact id
	// is already taken.
	ErrDuplicateArtifact = errors.New("artifact id already exists")
)

// MissingHeadersError lists every required header absent from a request.
type MissingHeadersError struct {
	Missing []string
}

func (e *MissingHeadersError) Error() string {
	return "missing headers: " + strings.Join(e.Missing, ", ")
}

// EscalatedError is raised after a failure was forwarded to the alarm channel.
type EscalatedError struct {
	What string
	Info string
}

func (e *EscalatedError) Error() string { return fmt.Sprintf("%s-%s", e.What, e.Info) }
