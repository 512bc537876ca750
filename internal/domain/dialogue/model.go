// Package dialogue implements the conversation core of the health assistant:
// a deterministic state machine that walks a user through login, menu
// navigation, symptom intake and disambiguation, diagnosis confirmation and
// medical-history editing. Each session maps (current state, raw input) to
// (next state, response text, side effects).
package dialogue

import (
	"sync"
	"time"

	"github.com/medchat/medchat/internal/domain/record"
	"github.com/medchat/medchat/internal/platform/infermedica"
)

// State is the closed set of conversation states. Every state has a defined
// response for any input; unrecognized input re-prompts without changing
// state unless a handler says otherwise.
type State string

const (
	StateGreeting              State = "greeting"
	StateAwaitingUsername      State = "awaiting_username"
	StateMainMenu              State = "main_menu"
	StateAwaitingAge           State = "awaiting_age"
	StateAwaitingSex           State = "awaiting_sex"
	StateCollectingSymptoms    State = "collecting_symptoms"
	StateSelectingSymptomMatch State = "selecting_symptom_match"
	StateDiagnosisComplete     State = "diagnosis_complete"
	StateEditingMedicalHistory State = "editing_medical_history"
)

// Session holds one user's conversation. It is created at first contact in
// StateGreeting and mutated only by Engine.Process, which serializes turns
// through the session mutex.
type Session struct {
	ID       string
	State    State
	Username string
	Record   *record.MedicalRecord

	PendingAge int
	PendingSex string

	// CollectedSymptoms and SymptomLabels are index-aligned; insertion order
	// determines the order shown in the final report.
	CollectedSymptoms []infermedica.Evidence
	SymptomLabels     []string

	// PendingMatches is the candidate list of the current disambiguation
	// round, cleared on every new free-text symptom entry.
	PendingMatches []infermedica.SymptomMatch

	// ActiveCategory is the history list currently being edited, empty when
	// none is selected.
	ActiveCategory record.Category

	Transcript []record.TranscriptEntry

	mu sync.Mutex
}

// NewSession returns a session in the initial greeting state.
func NewSession(id string) *Session {
	return &Session{ID: id, State: StateGreeting}
}

// TranscriptSnapshot returns a copy of the transcript safe for concurrent
// readers while a turn is in flight.
func (s *Session) TranscriptSnapshot() []record.TranscriptEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]record.TranscriptEntry, len(s.Transcript))
	copy(out, s.Transcript)
	return out
}

// CurrentState returns the state under the session lock.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

const timestampFormat = "2006-01-02 15:04:05"

func transcriptEntry(role, message string, at time.Time) record.TranscriptEntry {
	return record.TranscriptEntry{Role: role, Message: message, Timestamp: at.Format(timestampFormat)}
}
