package mode

import (
	"context"
	"encoding/json"
	"time"
)

const (
	hillCaptureCooldown = 3 * time.Second
	hillTickInterval    = time.Second
)

// HillHold: capture-the-hill. The current holder lives in the shared
// session settings blob; tenure converts to score through tick actions.
// Nobody "completes" this mode, the hard deadline ends it.
type HillHold struct {
	cfg Config
}

func NewHillHold() *HillHold {
	return &HillHold{cfg: Config{
		ID:         "hillhold",
		Name:       "Capture the Hill",
		MinPlayers: 2,
		MaxPlayers: 8,
		Duration:   6 * time.Minute,
		Policy:     EndAfterGrace,
		Grace:      20 * time.Second,
		Difficulty: 1.1,
		BaseCoins:  110,
	}}
}

func (e *HillHold) Config() Config { return e.cfg }

type hillAction struct {
	Op string `json:"op"` // capture | tick
}

type hillState struct {
	LastCaptureMS int64 `json:"last_capture_ms,omitempty"`
	LastTickMS    int64 `json:"last_tick_ms,omitempty"`
}

type hillSettingsBlob struct {
	HillHolder   string `json:"hill_holder,omitempty"`
	CapturedAtMS int64  `json:"captured_at_ms,omitempty"`
}

func (e *HillHold) Apply(_ context.Context, ac ActionContext) (Result, error) {
	var act hillAction
	if err := json.Unmarshal(ac.Raw, &act); err != nil {
		return Result{}, errBadAction
	}
	var st hillState
	if len(ac.State) > 0 {
		_ = json.Unmarshal(ac.State, &st)
	}
	var settings hillSettingsBlob
	if len(ac.Settings) > 0 {
		_ = json.Unmarshal(ac.Settings, &settings)
	}
	hill := ac.Scenario.Hill

	switch act.Op {
	case "capture":
		if onCooldown(st.LastCaptureMS, hillCaptureCooldown, ac.Now) {
			return Result{}, errCooldownActive
		}
		if settings.HillHolder == ac.UserID {
			return Result{}, errBadAction
		}
		st.LastCaptureMS = ac.Now.UnixMilli()
		settings.HillHolder = ac.UserID
		settings.CapturedAtMS = ac.Now.UnixMilli()
		stateBlob, _ := json.Marshal(st)
		settingsBlob, _ := json.Marshal(settings)
		return Result{
			ScoreDelta: hill.CapturePoints,
			StageDelta: 1,
			State:      stateBlob,
			Settings:   settingsBlob,
			Effects:    map[string]any{"op": "capture", "hill_holder": ac.UserID},
		}, nil

	case "tick":
		if settings.HillHolder != ac.UserID {
			return Result{}, errNotHillHolder
		}
		if onCooldown(st.LastTickMS, hillTickInterval, ac.Now) {
			return Result{}, errCooldownActive
		}
		st.LastTickMS = ac.Now.UnixMilli()
		blob, _ := json.Marshal(st)
		return Result{
			ScoreDelta: hill.TickPoints,
			State:      blob,
			Effects:    map[string]any{"op": "tick", "hill_holder": ac.UserID},
		}, nil
	}
	return Result{}, errBadAction
}
