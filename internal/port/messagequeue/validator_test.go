package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateValidAgentLog(t *testing.T) {
	data := []byte(`{"id":"l1","business_id":"b1","user_message":"hi","agent_reply_summary":"hello","tools_used":["get_kpi_summary"],"success":true,"duration_ms":12,"timestamp":"2026-03-01T00:00:00Z"}`)
	if err := Validate(SubjectAgentLog, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAgentLogMissingBusiness(t *testing.T) {
	data := []byte(`{"id":"l1","user_message":"hi"}`)
	err := Validate(SubjectAgentLog, data)
	if err == nil || !strings.Contains(err.Error(), "business_id") {
		t.Fatalf("expected business_id error, got %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	if err := Validate("unknown.subject", []byte(`{"foo":"bar"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	err := Validate(SubjectAgentLog, []byte(`{not valid json`))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected 'invalid JSON' in error, got: %v", err)
	}
}

func TestValidateInvalidSchema(t *testing.T) {
	if err := Validate(SubjectAgentLog, []byte(`"just a string"`)); err == nil {
		t.Fatal("expected schema validation error")
	}
}
