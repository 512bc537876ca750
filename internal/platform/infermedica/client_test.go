package infermedica

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL+"/", "test-id", "test-key", zerolog.Nop()), srv
}

func TestSearchSymptoms_EncodesQueryAndHeaders(t *testing.T) {
	var gotPath, gotPhrase, gotAge, gotSex, gotAppID string
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPhrase = r.URL.Query().Get("phrase")
		gotAge = r.URL.Query().Get("age.value")
		gotSex = r.URL.Query().Get("sex")
		gotAppID = r.Header.Get("App-Id")
		json.NewEncoder(w).Encode([]SymptomMatch{
			{ID: "s_98", Name: "Fever", CommonName: "Fever"},
			{ID: "s_107", Name: "Chills", CommonName: "Chills"},
		})
	})
	defer srv.Close()

	matches, err := client.SearchSymptoms(context.Background(), "fever", 35, "male")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/symptoms" {
		t.Errorf("expected path /symptoms, got %s", gotPath)
	}
	if gotPhrase != "fever" || gotAge != "35" || gotSex != "male" {
		t.Errorf("unexpected query params: phrase=%s age=%s sex=%s", gotPhrase, gotAge, gotSex)
	}
	if gotAppID != "test-id" {
		t.Errorf("expected App-Id header, got %s", gotAppID)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].ID != "s_98" || matches[0].Name != "Fever" {
		t.Errorf("unexpected first match: %+v", matches[0])
	}
}

func TestDiagnose_SendsEvidenceBody(t *testing.T) {
	var got interviewRequest
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/diagnosis" {
			t.Errorf("expected path /diagnosis, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Diagnosis{Conditions: []Condition{
			{ID: "c_49", Name: "Common cold", Probability: 0.72},
		}})
	})
	defer srv.Close()

	evidence := []Evidence{{ID: "s_98", ChoiceID: ChoicePresent}}
	diag, err := client.Diagnose(context.Background(), 42, "female", evidence)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Sex != "female" {
		t.Errorf("expected sex female, got %s", got.Sex)
	}
	if got.Age.Value != 42 {
		t.Errorf("expected age 42, got %d", got.Age.Value)
	}
	if len(got.Evidence) != 1 || got.Evidence[0].ChoiceID != "present" {
		t.Errorf("unexpected evidence: %+v", got.Evidence)
	}
	if len(diag.Conditions) != 1 || diag.Conditions[0].Probability != 0.72 {
		t.Errorf("unexpected diagnosis: %+v", diag)
	}
}

func TestTriage_DecodesResponse(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/triage" {
			t.Errorf("expected path /triage, got %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Triage{TriageLevel: "consultation", TeleconsultationApplicable: true})
	})
	defer srv.Close()

	tr, err := client.Triage(context.Background(), 30, "male", []Evidence{{ID: "s_1", ChoiceID: ChoicePresent}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.TriageLevel != "consultation" {
		t.Errorf("expected consultation, got %s", tr.TriageLevel)
	}
	if !tr.TeleconsultationApplicable {
		t.Error("expected teleconsultation_applicable true")
	}
}

func TestClient_NonSuccessStatusIsError(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid credentials"}`, http.StatusForbidden)
	})
	defer srv.Close()

	if _, err := client.SearchSymptoms(context.Background(), "fever", 35, "male"); err == nil {
		t.Error("expected error for 403 on symptom search")
	}
	if _, err := client.Diagnose(context.Background(), 35, "male", nil); err == nil {
		t.Error("expected error for 403 on diagnosis")
	}
	if _, err := client.Triage(context.Background(), 35, "male", nil); err == nil {
		t.Error("expected error for 403 on triage")
	}
}
