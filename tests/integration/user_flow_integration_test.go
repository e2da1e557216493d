//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func baseURL() string {
	if v := os.Getenv("DIVERSA_TEST_BASE_URL"); strings.TrimSpace(v) != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:18080"
}

func TestSubmissionJourneyIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()

	userEmail := fmt.Sprintf("integration_%d@example.com", time.Now().UnixNano())
	password := "Secret123!"

	var registerResp struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	doPost(t, client, base+"/api/auth/register", "", map[string]any{
		"email":    userEmail,
		"password": password,
		"name":     "Integration User",
	}, &registerResp)
	if registerResp.Token == "" || registerResp.UserID == "" {
		t.Fatalf("unexpected register response: %+v", registerResp)
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	doPost(t, client, base+"/api/auth/login", "", map[string]string{
		"email":    userEmail,
		"password": password,
	}, &loginResp)
	token := loginResp.Token
	if token == "" {
		t.Fatalf("login did not return token")
	}

	var surveyResp struct {
		ID string `json:"id"`
	}
	doPost(t, client, base+"/api/surveys", token, map[string]any{
		"name":  fmt.Sprintf("integration survey %d", time.Now().UnixNano()),
		"title": "integration survey",
	}, &surveyResp)
	if surveyResp.ID == "" {
		t.Fatalf("expected survey id in response")
	}

	var residencyResp struct {
		ID string `json:"id"`
	}
	doPost(t, client, base+"/api/questions", token, map[string]any{
		"survey_id":      surveyResp.ID,
		"text":           "Ha vivido en Colombia durante los ultimos 5 anos?",
		"question_type":  "closed",
		"screening_role": "residency",
		"is_required":    true,
	}, &residencyResp)
	if residencyResp.ID == "" {
		t.Fatalf("expected residency question id")
	}

	var yesResp struct {
		ID string `json:"id"`
	}
	doPost(t, client, base+"/api/question-options", token, map[string]any{
		"question_id": residencyResp.ID,
		"text":        "Si",
	}, &yesResp)
	var noResp struct {
		ID string `json:"id"`
	}
	doPost(t, client, base+"/api/question-options", token, map[string]any{
		"question_id": residencyResp.ID,
		"text":        "no",
	}, &noResp)

	var birthResp struct {
		ID string `json:"id"`
	}
	doPost(t, client, base+"/api/questions", token, map[string]any{
		"survey_id":      surveyResp.ID,
		"text":           "Fecha de nacimiento",
		"question_type":  "birth_date",
		"screening_role": "birth_date",
		"is_required":    true,
	}, &birthResp)

	var openResp struct {
		ID string `json:"id"`
	}
	doPost(t, client, base+"/api/questions", token, map[string]any{
		"survey_id":     surveyResp.ID,
		"text":          "Cuantas personas viven en su hogar?",
		"question_type": "open",
		"data_type":     "integer",
		"min_value":     1,
		"max_value":     30,
	}, &openResp)

	var submitResp struct {
		Status      string   `json:"status"`
		AttemptID   string   `json:"attempt_id"`
		ResponseIDs []string `json:"response_ids"`
	}
	doPost(t, client, base+"/api/responses", token, map[string]any{
		"answers": []map[string]any{
			{"survey_id": surveyResp.ID, "question_id": residencyResp.ID, "option_selected": yesResp.ID},
			{"survey_id": surveyResp.ID, "question_id": birthResp.ID, "answer": "1990-06-15"},
			{"survey_id": surveyResp.ID, "question_id": openResp.ID, "answer": "4"},
		},
	}, &submitResp)
	if submitResp.Status != "completed" {
		t.Fatalf("expected completed submission, got %+v", submitResp)
	}
	if submitResp.AttemptID == "" || len(submitResp.ResponseIDs) != 1 {
		t.Fatalf("unexpected submission payload: %+v", submitResp)
	}

	exportURL := fmt.Sprintf("%s/api/responses/export?survey_id=%s&format=long", base, surveyResp.ID)
	req, err := http.NewRequest(http.MethodGet, exportURL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("export request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("export status %d body %s", resp.StatusCode, string(body))
	}
	csvData, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read export data: %v", err)
	}
	csvContent := string(csvData)
	if !strings.Contains(csvContent, registerResp.UserID) {
		t.Fatalf("export csv did not contain user id; csv=%s", csvContent)
	}
}

func doPost(t *testing.T, client *http.Client, url, token string, body any, out any) {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("http post %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d for %s: %s", resp.StatusCode, url, string(bodyBytes))
	}
	if out != nil {
		decoder := json.NewDecoder(resp.Body)
		if err := decoder.Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
}
