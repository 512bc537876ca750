package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medchat/medchat/internal/domain/record"
	"github.com/medchat/medchat/internal/platform/infermedica"
)

// KnowledgeClient is the slice of the medical-evidence service the engine
// depends on. Any error from a call is treated the same as an empty/absent
// result: the conversation degrades, it never fails.
type KnowledgeClient interface {
	SearchSymptoms(ctx context.Context, phrase string, age int, sex string) ([]infermedica.SymptomMatch, error)
	Diagnose(ctx context.Context, age int, sex string, evidence []infermedica.Evidence) (*infermedica.Diagnosis, error)
	Triage(ctx context.Context, age int, sex string, evidence []infermedica.Evidence) (*infermedica.Triage, error)
}

const menuText = "\n1) Manage Medical History\n2) Symptom Diagnosis\n3) View Previous Diagnoses"

const historyMenuText = "\n1) Chronic Conditions\n2) Allergies\n3) Medications\n4) Previous Surgeries\n5) Return to Main Menu"

var triageRecommendations = map[string]string{
	"self_care":    "Your symptoms suggest you can manage this with self-care. Monitor your condition and rest.",
	"consultation": "Consider scheduling a consultation with a healthcare provider.",
	"emergency":    "Seek immediate medical attention. Your symptoms may indicate a serious condition.",
}

const triageFallback = "Consult with a healthcare professional for guidance."

// Engine drives the conversation state machine. It is stateless itself; all
// per-conversation state lives on the Session.
type Engine struct {
	knowledge KnowledgeClient
	records   *record.Service
	logger    zerolog.Logger
	now       func() time.Time
}

func NewEngine(knowledge KnowledgeClient, records *record.Service, logger zerolog.Logger) *Engine {
	return &Engine{knowledge: knowledge, records: records, logger: logger, now: time.Now}
}

// Process interprets one inbound message against the session's current state
// and returns the response text. The turn is fully processed under the
// session lock: state transition, external calls and persistence all finish
// before the next message for this session is accepted.
func (e *Engine) Process(ctx context.Context, s *Session, message string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Username != "" {
		s.Transcript = append(s.Transcript, transcriptEntry(record.RoleUser, message, e.now()))
	}

	lower := strings.ToLower(message)

	var response string
	switch s.State {
	case StateGreeting:
		response = e.handleGreeting(s, lower)
	case StateAwaitingUsername:
		// The username keeps the raw casing.
		response = e.handleUsername(ctx, s, message)
	case StateMainMenu:
		response = e.handleMainMenu(s, lower)
	case StateAwaitingAge:
		response = e.handleAge(s, lower)
	case StateAwaitingSex:
		response = e.handleSex(s, lower)
	case StateCollectingSymptoms:
		response = e.handleSymptoms(ctx, s, lower)
	case StateSelectingSymptomMatch:
		response = e.handleSymptomSelection(s, lower)
	case StateDiagnosisComplete:
		response = e.handlePostDiagnosis(ctx, s, lower)
	case StateEditingMedicalHistory:
		response = e.handleMedicalHistory(ctx, s, lower)
	default:
		s.State = StateGreeting
		response = "I'm not sure what to do next. Let's start over. How can I help you today?"
	}

	if s.Username != "" {
		s.Transcript = append(s.Transcript, transcriptEntry(record.RoleBot, response, e.now()))
		e.records.SaveTranscript(ctx, s.Username, s.Transcript)
	}

	return response
}

func (e *Engine) handleGreeting(s *Session, msg string) string {
	if isGreeting(msg) {
		s.State = StateAwaitingUsername
		return "Welcome to the AI Health Assistant! I can help you manage your medical history and analyze your symptoms. What's your username?"
	}
	return "Hello! I'm your AI Health Assistant. To get started, please say hi or hello."
}

func (e *Engine) handleUsername(ctx context.Context, s *Session, msg string) string {
	username := strings.TrimSpace(msg)
	if username == "" {
		return "I didn't catch a username. Please tell me the username you'd like to use."
	}

	s.Username = username
	rec, found := e.records.LoadOrCreate(ctx, username)
	s.Record = rec
	s.State = StateMainMenu

	if found {
		return fmt.Sprintf("Welcome back, %s! I've loaded your medical history. What would you like to do today?%s", username, menuText)
	}
	return fmt.Sprintf("Welcome %s! I don't see any existing medical records for you. What would you like to do?%s", username, menuText)
}

func (e *Engine) handleMainMenu(s *Session, msg string) string {
	switch classifyMenu(msg) {
	case menuManageHistory:
		s.State = StateEditingMedicalHistory
		s.ActiveCategory = ""
		return "Let's manage your medical history. What would you like to update?" + historyMenuText

	case menuStartDiagnosis:
		s.State = StateAwaitingAge
		s.CollectedSymptoms = nil
		s.SymptomLabels = nil
		return "I'll help you analyze your symptoms. First, what is your age?"

	case menuViewPast:
		return e.renderPastDiagnoses(s)

	default:
		return "I didn't understand your selection. Please choose one of the following:" + menuText
	}
}

func (e *Engine) renderPastDiagnoses(s *Session) string {
	if s.Record == nil || len(s.Record.PreviousPredictions) == 0 {
		return "You don't have any previous diagnoses saved. Would you like to start a new symptom check?\n1) Yes, start new symptom check\n2) No, return to main menu"
	}

	preds := s.Record.PreviousPredictions
	if len(preds) > 3 {
		preds = preds[len(preds)-3:]
	}

	var b strings.Builder
	b.WriteString("Here are your most recent diagnoses:\n\n")
	for i, d := range preds {
		conditions := make([]string, 0, 3)
		for j, c := range d.Conditions {
			if j == 3 {
				break
			}
			conditions = append(conditions, fmt.Sprintf("%s (%.1f%%)", c.Name, c.Probability))
		}
		fmt.Fprintf(&b, "Diagnosis %d (%s):\n", i+1, d.Date)
		fmt.Fprintf(&b, "Symptoms: %s\n", strings.Join(d.Symptoms, ", "))
		fmt.Fprintf(&b, "Top conditions: %s\n\n", strings.Join(conditions, ", "))
	}
	b.WriteString("What would you like to do next?\n1) Start new symptom check\n2) Return to main menu")
	return b.String()
}

func (e *Engine) handleAge(s *Session, msg string) string {
	age, found := parseAge(msg)
	if !found {
		return "I couldn't understand the age. Please enter a number like '35' or '42'."
	}
	if age < 1 || age > 120 {
		return "Please enter a valid age between 1 and 120."
	}

	s.PendingAge = age
	s.State = StateAwaitingSex
	return "Thank you. What is your sex (male/female)?"
}

func (e *Engine) handleSex(s *Session, msg string) string {
	sex, ok := parseSex(msg)
	if !ok {
		return "Please specify either 'male' or 'female' for accurate diagnostic purposes."
	}

	s.PendingSex = sex
	s.State = StateCollectingSymptoms
	return "Now, please tell me what symptoms you're experiencing. You can enter one symptom at a time."
}

func (e *Engine) handleSymptoms(ctx context.Context, s *Session, msg string) string {
	if isCompletion(msg) {
		if len(s.CollectedSymptoms) == 0 {
			return "You haven't added any symptoms yet. Please tell me what symptoms you're experiencing, or type 'cancel' to go back to the main menu."
		}
		return e.completeDiagnosis(ctx, s)
	}

	if msg == "cancel" {
		s.CollectedSymptoms = nil
		s.SymptomLabels = nil
		s.State = StateMainMenu
		return "Symptom check cancelled. What would you like to do?" + menuText
	}

	matches, err := e.knowledge.SearchSymptoms(ctx, msg, s.PendingAge, s.PendingSex)
	if err != nil {
		e.logger.Warn().Err(err).Str("session_id", s.ID).Msg("symptom search failed")
		matches = nil
	}
	if len(matches) == 0 {
		return "I couldn't find any matching symptoms. Please try a different description or type 'done' if you've finished adding symptoms."
	}

	s.PendingMatches = matches
	s.State = StateSelectingSymptomMatch

	var b strings.Builder
	b.WriteString("I found these matching symptoms. Please select one by number:\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "%d. %s (Common Name: %s)\n", i+1, m.Name, m.CommonName)
	}
	b.WriteString("\nOr type 'none' if none of these match your symptom.")
	return b.String()
}

func (e *Engine) completeDiagnosis(ctx context.Context, s *Session) string {
	diag, err := e.knowledge.Diagnose(ctx, s.PendingAge, s.PendingSex, s.CollectedSymptoms)
	if err != nil {
		e.logger.Warn().Err(err).Str("session_id", s.ID).Msg("diagnosis call failed")
		diag = nil
	}
	tri, err := e.knowledge.Triage(ctx, s.PendingAge, s.PendingSex, s.CollectedSymptoms)
	if err != nil {
		e.logger.Warn().Err(err).Str("session_id", s.ID).Msg("triage call failed")
		tri = nil
	}

	if diag == nil && tri == nil {
		s.State = StateMainMenu
		return "I couldn't reach the medical knowledge service to analyze your symptoms. Please try again in a moment. What would you like to do?" + menuText
	}

	var b strings.Builder
	b.WriteString("Based on your symptoms, here's what I found:\n\n")

	var conditions []record.ConditionOutcome
	if diag != nil && len(diag.Conditions) > 0 {
		b.WriteString("Possible Conditions:\n")
		for i, c := range diag.Conditions {
			pct := c.Probability * 100
			conditions = append(conditions, record.ConditionOutcome{Name: c.Name, Probability: pct})
			if i < 3 {
				fmt.Fprintf(&b, "- %s (Probability: %.1f%%)\n", c.Name, pct)
			}
		}
	}

	var triageInfo *record.TriageOutcome
	if tri != nil {
		b.WriteString("\nRecommended Next Steps:\n")
		recommendation, ok := triageRecommendations[tri.TriageLevel]
		if !ok {
			recommendation = triageFallback
		}
		b.WriteString(recommendation + "\n")

		triageInfo = &record.TriageOutcome{
			Level:                      tri.TriageLevel,
			Recommendation:             recommendation,
			TeleconsultationApplicable: tri.TeleconsultationApplicable,
		}
		if tri.TeleconsultationApplicable {
			b.WriteString("\nA telehealth consultation may be appropriate for your condition.\n")
		}
	}

	prediction := record.DiagnosisRecord{
		Date:       e.now().Format(timestampFormat),
		Age:        s.PendingAge,
		Sex:        s.PendingSex,
		Symptoms:   append([]string{}, s.SymptomLabels...),
		Conditions: conditions,
		Triage:     triageInfo,
	}
	s.Record.PreviousPredictions = append(s.Record.PreviousPredictions, prediction)

	s.State = StateDiagnosisComplete
	b.WriteString("\nWould you like me to save this diagnosis to your medical history? (yes/no)")
	return b.String()
}

func (e *Engine) handleSymptomSelection(s *Session, msg string) string {
	if msg == "none" {
		s.PendingMatches = nil
		s.State = StateCollectingSymptoms
		return "No problem. Please try describing your symptom differently, or enter another symptom."
	}

	choice, ok := parseSelection(msg)
	if !ok {
		return "Please enter just the number of the symptom you want to select, or type 'none'."
	}
	if choice < 1 || choice > len(s.PendingMatches) {
		return fmt.Sprintf("Please select a number between 1 and %d, or type 'none'.", len(s.PendingMatches))
	}

	selected := s.PendingMatches[choice-1]
	s.CollectedSymptoms = append(s.CollectedSymptoms, infermedica.Evidence{ID: selected.ID, ChoiceID: infermedica.ChoicePresent})
	s.SymptomLabels = append(s.SymptomLabels, selected.Name)
	s.PendingMatches = nil
	s.State = StateCollectingSymptoms

	return fmt.Sprintf("Added symptom: %s. Please tell me another symptom, or type 'done' if you've entered all your symptoms.", selected.Name)
}

func (e *Engine) handlePostDiagnosis(ctx context.Context, s *Session, msg string) string {
	s.State = StateMainMenu

	if isAffirmative(msg) {
		if err := e.records.Save(ctx, s.Record); err != nil {
			e.logger.Error().Err(err).Str("username_key", record.Key(s.Username)).Msg("failed to save medical record")
		}
		return "I've saved your diagnosis to your medical history. What would you like to do next?" + menuText
	}
	return "I haven't saved this diagnosis. What would you like to do next?" + menuText
}

func (e *Engine) handleMedicalHistory(ctx context.Context, s *Session, msg string) string {
	op, item := parseHistoryCommand(msg)

	if op == historyOpNone {
		if cat, ok := classifyHistoryCategory(msg); ok {
			s.ActiveCategory = cat
			return fmt.Sprintf("Current %s: %s\n\nTo add an item, type 'add [item]'\nTo remove, type 'remove [item]'\nType 'done' when finished.",
				cat.Title(), joinOrNone(s.Record.Items(cat)))
		}

		if isHistoryExit(msg) {
			if err := e.records.Save(ctx, s.Record); err != nil {
				e.logger.Error().Err(err).Str("username_key", record.Key(s.Username)).Msg("failed to save medical record")
			}
			s.State = StateMainMenu
			return "Medical history updated and saved. What would you like to do next?" + menuText
		}

		if s.ActiveCategory == "" {
			return "Please select a category to update first:" + historyMenuText
		}
		return "I didn't understand that command. To add an item, type 'add [item]'. To remove an item, type 'remove [item]'. Or type 'done' to finish."
	}

	if s.ActiveCategory == "" {
		return "Please select a category to update first:" + historyMenuText
	}

	cat := s.ActiveCategory
	switch op {
	case historyOpAdd:
		s.Record.Add(cat, item)
		return fmt.Sprintf("Added '%s' to %s. Current list: %s\nAdd another or type 'done'.",
			item, cat.Title(), joinOrNone(s.Record.Items(cat)))

	case historyOpRemove:
		if !s.Record.Remove(cat, item) {
			return fmt.Sprintf("'%s' not found in the current category. Please try again.", item)
		}
		return fmt.Sprintf("Removed '%s' from %s. Current list: %s\nAdd/remove another or type 'done'.",
			item, cat.Title(), joinOrNone(s.Record.Items(cat)))
	}

	return "I didn't understand that command. To add an item, type 'add [item]'. To remove an item, type 'remove [item]'. Or type 'done' to finish."
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
