// Package infermedica is a thin client for the Infermedica medical knowledge
// API. It covers the three calls the dialogue engine depends on: symptom
// search, diagnosis and triage. Callers treat any error as the absent/empty
// result and degrade the conversation accordingly.
package infermedica

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ChoicePresent marks a symptom as present in submitted evidence.
const ChoicePresent = "present"

// SymptomMatch is one candidate from a symptom search.
type SymptomMatch struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CommonName string `json:"common_name"`
}

// Evidence references a symptom plus its presence flag, as the diagnosis and
// triage endpoints expect it.
type Evidence struct {
	ID       string `json:"id"`
	ChoiceID string `json:"choice_id"`
}

// Condition is a candidate diagnosis with a probability in [0,1].
type Condition struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Probability float64 `json:"probability"`
}

// Diagnosis is the response of the /diagnosis endpoint.
type Diagnosis struct {
	Conditions []Condition `json:"conditions"`
}

// Triage is the response of the /triage endpoint.
type Triage struct {
	TriageLevel                string `json:"triage_level"`
	TeleconsultationApplicable bool   `json:"teleconsultation_applicable"`
}

// Client talks to the Infermedica REST API. The zero value is not usable;
// construct it with NewClient.
type Client struct {
	baseURL string
	appID   string
	appKey  string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(baseURL, appID, appKey string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		appID:   appID,
		appKey:  appKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}
}

// SearchSymptoms queries /symptoms for candidates matching the free-text
// phrase, scoped by age and sex.
func (c *Client) SearchSymptoms(ctx context.Context, phrase string, age int, sex string) ([]SymptomMatch, error) {
	q := url.Values{}
	q.Set("phrase", phrase)
	q.Set("age.value", strconv.Itoa(age))
	q.Set("sex", sex)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/symptoms?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build symptom search request: %w", err)
	}
	c.setHeaders(req)

	var matches []SymptomMatch
	if err := c.do(req, &matches); err != nil {
		return nil, fmt.Errorf("symptom search: %w", err)
	}
	return matches, nil
}

type interviewRequest struct {
	Sex      string     `json:"sex"`
	Age      ageValue   `json:"age"`
	Evidence []Evidence `json:"evidence"`
}

type ageValue struct {
	Value int `json:"value"`
}

// Diagnose submits collected evidence to /diagnosis and returns the ranked
// condition list.
func (c *Client) Diagnose(ctx context.Context, age int, sex string, evidence []Evidence) (*Diagnosis, error) {
	var out Diagnosis
	if err := c.postInterview(ctx, "/diagnosis", age, sex, evidence, &out); err != nil {
		return nil, fmt.Errorf("diagnosis: %w", err)
	}
	return &out, nil
}

// Triage submits collected evidence to /triage and returns the urgency
// classification.
func (c *Client) Triage(ctx context.Context, age int, sex string, evidence []Evidence) (*Triage, error) {
	var out Triage
	if err := c.postInterview(ctx, "/triage", age, sex, evidence, &out); err != nil {
		return nil, fmt.Errorf("triage: %w", err)
	}
	return &out, nil
}

func (c *Client) postInterview(ctx context.Context, path string, age int, sex string, evidence []Evidence, out interface{}) error {
	body, err := json.Marshal(interviewRequest{Sex: sex, Age: ageValue{Value: age}, Evidence: evidence})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	return c.do(req, out)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("App-Id", c.appID)
	req.Header.Set("App-Key", c.appKey)
	req.Header.Set("Content-Type", "application/json")
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("path", req.URL.Path).
			Str("body", string(snippet)).
			Msg("infermedica request failed")
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
