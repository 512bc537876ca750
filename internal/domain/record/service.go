package record

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Service wraps a Store with the semantics the dialogue engine relies on:
// an absent record is indistinguishable from a brand-new user, and
// persistence failures never interrupt a conversation.
type Service struct {
	store  Store
	logger zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// LoadOrCreate returns the stored record for username, or a fresh empty
// record when none exists. The second result reports whether an existing
// record was found. Store errors other than not-found are logged and treated
// as not-found so the conversation can continue.
func (s *Service) LoadOrCreate(ctx context.Context, username string) (*MedicalRecord, bool) {
	rec, err := s.store.Load(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			s.logger.Error().Err(err).Str("username_key", Key(username)).Msg("failed to load medical record")
		}
		return New(username), false
	}
	return rec, true
}

// Save persists the record.
func (s *Service) Save(ctx context.Context, rec *MedicalRecord) error {
	return s.store.Save(ctx, rec)
}

// Delete removes the record (and its transcript) for username.
func (s *Service) Delete(ctx context.Context, username string) error {
	return s.store.Delete(ctx, username)
}

// SaveTranscript rewrites the transcript document for username. Failures are
// logged, not surfaced; transcript persistence is best-effort.
func (s *Service) SaveTranscript(ctx context.Context, username string, entries []TranscriptEntry) {
	if err := s.store.SaveTranscript(ctx, username, entries); err != nil {
		s.logger.Error().Err(err).Str("username_key", Key(username)).Msg("failed to save transcript")
	}
}

// Transcript returns the stored transcript for username, empty when absent.
func (s *Service) Transcript(ctx context.Context, username string) ([]TranscriptEntry, error) {
	return s.store.LoadTranscript(ctx, username)
}

// Load returns the stored record without synthesizing a default.
func (s *Service) Load(ctx context.Context, username string) (*MedicalRecord, error) {
	return s.store.Load(ctx, username)
}
