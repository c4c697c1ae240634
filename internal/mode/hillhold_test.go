package mode

import (
	"encoding/json"
	"testing"
	"time"

	"arena-server/internal/content"
)

func hillScenario() *content.Scenario {
	return &content.Scenario{
		ID: "scn", Mode: "hillhold",
		Hill: &content.HillSettings{CapturePoints: 50, TickPoints: 10},
	}
}

func TestHillCaptureTransfersHolder(t *testing.T) {
	e := NewHillHold()
	scn := hillScenario()
	now := time.Now()

	res, err := e.Apply(nil, ActionContext{Scenario: scn, UserID: "u1", Now: now, Raw: json.RawMessage(`{"op":"capture"}`)})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if res.ScoreDelta != 50 || res.Settings == nil {
		t.Fatalf("unexpected capture result: %+v", res)
	}

	var settings hillSettingsBlob
	if err := json.Unmarshal(res.Settings, &settings); err != nil {
		t.Fatalf("settings blob: %v", err)
	}
	if settings.HillHolder != "u1" {
		t.Fatalf("hill_holder = %q, want u1", settings.HillHolder)
	}

	// Holder cannot re-capture their own hill.
	_, err = e.Apply(nil, ActionContext{Scenario: scn, UserID: "u1", Settings: res.Settings, Now: now.Add(5 * time.Second), Raw: json.RawMessage(`{"op":"capture"}`)})
	if err == nil || err.Error() != "bad_action" {
		t.Fatalf("err = %v, want bad_action", err)
	}

	res2, err := e.Apply(nil, ActionContext{Scenario: scn, UserID: "u2", Settings: res.Settings, Now: now.Add(5 * time.Second), Raw: json.RawMessage(`{"op":"capture"}`)})
	if err != nil {
		t.Fatalf("rival capture: %v", err)
	}
	_ = json.Unmarshal(res2.Settings, &settings)
	if settings.HillHolder != "u2" {
		t.Fatalf("hill_holder = %q, want u2", settings.HillHolder)
	}
}

func TestHillTickOnlyForHolder(t *testing.T) {
	e := NewHillHold()
	scn := hillScenario()
	now := time.Now()

	capture, err := e.Apply(nil, ActionContext{Scenario: scn, UserID: "u1", Now: now, Raw: json.RawMessage(`{"op":"capture"}`)})
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	_, err = e.Apply(nil, ActionContext{Scenario: scn, UserID: "u2", Settings: capture.Settings, Now: now.Add(2 * time.Second), Raw: json.RawMessage(`{"op":"tick"}`)})
	if err == nil || err.Error() != "not_hill_holder" {
		t.Fatalf("err = %v, want not_hill_holder", err)
	}

	res, err := e.Apply(nil, ActionContext{Scenario: scn, UserID: "u1", Settings: capture.Settings, Now: now.Add(2 * time.Second), Raw: json.RawMessage(`{"op":"tick"}`)})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if res.ScoreDelta != 10 || res.Completed {
		t.Fatalf("unexpected tick result: %+v", res)
	}

	_, err = e.Apply(nil, ActionContext{Scenario: scn, UserID: "u1", State: res.State, Settings: capture.Settings, Now: now.Add(2*time.Second + 200*time.Millisecond), Raw: json.RawMessage(`{"op":"tick"}`)})
	if err == nil || err.Error() != "cooldown_active" {
		t.Fatalf("err = %v, want cooldown_active", err)
	}
}

func TestRegistryDispatch(t *testing.T) {
	r := DefaultRegistry()
	for _, id := range []string{"commandrace", "siege", "forensics", "hillhold"} {
		e, err := r.Get(id)
		if err != nil {
			t.Fatalf("Get(%q): %v", id, err)
		}
		if e.Config().ID != id {
			t.Fatalf("engine id = %q, want %q", e.Config().ID, id)
		}
	}
	if _, err := r.Get("speedchess"); err == nil || err.Error() != "unknown_mode" {
		t.Fatalf("err = %v, want unknown_mode", err)
	}
}
