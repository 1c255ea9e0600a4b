package reason

import (
	"encoding/json"
	"testing"
)

func TestJSONRoundTrip(t *testing.T) {
	r := New(ElementNotClickable, "button is covered by overlay").
		WithContext(map[string]interface{}{"selector": "#submit"}).
		WithSuggestion("wait for the overlay to dismiss")

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Reason
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Timestamp.Equal(r.Timestamp) {
		t.Fatalf("timestamp mismatch: got %v want %v", got.Timestamp, r.Timestamp)
	}
	got.Timestamp = r.Timestamp
	data2, _ := json.Marshal(got)
	data1, _ := json.Marshal(r)
	if string(data1) != string(data2) {
		t.Fatalf("round trip not equal:\n%s\n%s", data1, data2)
	}
}

func TestValid(t *testing.T) {
	if !Valid(Success) {
		t.Fatal("expected success to be valid")
	}
	if Valid(Code("not-a-real-code")) {
		t.Fatal("expected unknown code to be invalid")
	}
}

func TestRecoverableDefaults(t *testing.T) {
	if New(ValidationFailed, "bad input").Recoverable {
		t.Fatal("validation-failed must never be recoverable")
	}
	if !New(TimeoutStep, "slow").Recoverable {
		t.Fatal("timeout-step must be recoverable")
	}
}

func TestSkippedIdempotentPrecedence(t *testing.T) {
	r := SkippedIdempotentf("already liked")
	if !r.IsSuccess() {
		t.Fatal("skipped-idempotent must count as success")
	}
	if r.Recoverable {
		t.Fatal("skipped-idempotent is terminal, not recoverable")
	}
}
