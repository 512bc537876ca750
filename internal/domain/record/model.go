// Package record owns per-user medical records and conversation transcripts:
// the document model, the Store persistence contract with file and Postgres
// implementations, and a Service layer that synthesizes empty records for
// first-time users.
package record

import "strings"

// Category identifies one of the editable medical-history lists.
type Category string

const (
	CategoryChronicConditions Category = "chronic_conditions"
	CategoryAllergies         Category = "allergies"
	CategoryMedications       Category = "medications"
	CategoryPreviousSurgeries Category = "previous_surgeries"
)

// Title returns the human-readable name of the category.
func (c Category) Title() string {
	switch c {
	case CategoryChronicConditions:
		return "Chronic Conditions"
	case CategoryAllergies:
		return "Allergies"
	case CategoryMedications:
		return "Medications"
	case CategoryPreviousSurgeries:
		return "Previous Surgeries"
	default:
		return string(c)
	}
}

// ConditionOutcome is one candidate condition in a stored diagnosis, with the
// probability already scaled to a percentage.
type ConditionOutcome struct {
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
}

// TriageOutcome captures the triage guidance attached to a diagnosis.
type TriageOutcome struct {
	Level                      string `json:"level"`
	Recommendation             string `json:"recommendation"`
	TeleconsultationApplicable bool   `json:"teleconsultation_applicable"`
}

// DiagnosisRecord is an immutable snapshot of one completed symptom check.
type DiagnosisRecord struct {
	Date       string             `json:"date"`
	Age        int                `json:"age"`
	Sex        string             `json:"sex"`
	Symptoms   []string           `json:"symptoms"`
	Conditions []ConditionOutcome `json:"conditions"`
	Triage     *TriageOutcome     `json:"triage"`
}

// MedicalRecord is the per-user document persisted by the Store. All five
// list fields are always present; Normalize repairs documents written before
// a field existed.
type MedicalRecord struct {
	Username            string            `json:"username"`
	ChronicConditions   []string          `json:"chronic_conditions"`
	Allergies           []string          `json:"allergies"`
	Medications         []string          `json:"medications"`
	PreviousSurgeries   []string          `json:"previous_surgeries"`
	PreviousPredictions []DiagnosisRecord `json:"previous_predictions"`
}

// New returns an empty record for username with all list fields initialized.
func New(username string) *MedicalRecord {
	return &MedicalRecord{
		Username:            username,
		ChronicConditions:   []string{},
		Allergies:           []string{},
		Medications:         []string{},
		PreviousSurgeries:   []string{},
		PreviousPredictions: []DiagnosisRecord{},
	}
}

// Normalize replaces nil list fields with empty slices so loaded documents
// always satisfy the fully-populated invariant. A missing
// previous_predictions array in an older document is not a load failure.
func (r *MedicalRecord) Normalize() {
	if r.ChronicConditions == nil {
		r.ChronicConditions = []string{}
	}
	if r.Allergies == nil {
		r.Allergies = []string{}
	}
	if r.Medications == nil {
		r.Medications = []string{}
	}
	if r.PreviousSurgeries == nil {
		r.PreviousSurgeries = []string{}
	}
	if r.PreviousPredictions == nil {
		r.PreviousPredictions = []DiagnosisRecord{}
	}
}

func (r *MedicalRecord) list(c Category) *[]string {
	switch c {
	case CategoryChronicConditions:
		return &r.ChronicConditions
	case CategoryAllergies:
		return &r.Allergies
	case CategoryMedications:
		return &r.Medications
	case CategoryPreviousSurgeries:
		return &r.PreviousSurgeries
	default:
		return nil
	}
}

// Items returns the entries of the given category in insertion order.
func (r *MedicalRecord) Items(c Category) []string {
	if l := r.list(c); l != nil {
		return *l
	}
	return nil
}

// Add appends item to the category list. Duplicates are permitted.
func (r *MedicalRecord) Add(c Category, item string) {
	if l := r.list(c); l != nil {
		*l = append(*l, item)
	}
}

// Remove deletes the first exact match of item from the category list,
// reporting whether anything was removed.
func (r *MedicalRecord) Remove(c Category, item string) bool {
	l := r.list(c)
	if l == nil {
		return false
	}
	for i, v := range *l {
		if v == item {
			*l = append((*l)[:i], (*l)[i+1:]...)
			return true
		}
	}
	return false
}

// Transcript roles.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// TranscriptEntry is one line of a conversation transcript.
type TranscriptEntry struct {
	Role      string `json:"role"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Key normalizes a username into the document key: lower-cased, spaces
// replaced with underscores.
func Key(username string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(username)), " ", "_")
}
