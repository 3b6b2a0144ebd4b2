package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateValidExecutionStatus(t *testing.T) {
	data := []byte(`{"execution_id":"e1","plan_id":"p1","wave_number":0,"from":"pending","to":"in_progress"}`)
	if err := Validate(SubjectExecutionStatus+".e1", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateValidExecutionProgress(t *testing.T) {
	data := []byte(`{"execution_id":"e1","plan_id":"p1","percentage":85,"completed_waves":1,"total_waves":2}`)
	if err := Validate(SubjectExecutionProgress+".e1", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateValidExecutionCommand(t *testing.T) {
	data := []byte(`{"execution_id":"e1","command":"cancel"}`)
	if err := Validate(SubjectExecutionCommand+".e1", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateValidExecutionTerminated(t *testing.T) {
	data := []byte(`{"execution_id":"e1","total_terminated":5,"total_failed":0}`)
	if err := Validate(SubjectExecutionTerminated+".e1", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	// Unknown subjects should pass (future-proof).
	data := []byte(`{"foo":"bar"}`)
	if err := Validate("unknown.subject", data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	data := []byte(`{not valid json`)
	err := Validate(SubjectExecutionStatus+".e1", data)
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestValidateSchemaMismatch(t *testing.T) {
	// wave_number must be a number.
	data := []byte(`{"execution_id":"e1","wave_number":"zero"}`)
	if err := Validate(SubjectExecutionStatus+".e1", data); err == nil {
		t.Fatal("expected schema validation error")
	}
}
