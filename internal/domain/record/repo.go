package record

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned by Load and Delete when no document exists
// for the username.
var ErrRecordNotFound = errors.New("medical record not found")

// Store persists medical-record documents and conversation transcripts keyed
// by the normalized username. Implementations serialize writes per username;
// writes to different usernames may proceed concurrently.
type Store interface {
	Load(ctx context.Context, username string) (*MedicalRecord, error)
	Save(ctx context.Context, rec *MedicalRecord) error
	Delete(ctx context.Context, username string) error

	// SaveTranscript rewrites the full transcript document for username.
	SaveTranscript(ctx context.Context, username string, entries []TranscriptEntry) error
	LoadTranscript(ctx context.Context, username string) ([]TranscriptEntry, error)
}
