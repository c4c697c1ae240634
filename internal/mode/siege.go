package mode

import (
	"context"
	"encoding/json"
	"time"

	"arena-server/internal/content"
)

const (
	siegeAttackCooldown = 5 * time.Second
	siegeDefendCooldown = 10 * time.Second
	siegeMaxDefense     = 5
	siegeDefendPoints   = 50
	siegeFlagPoints     = 500
)

// Siege: attackers breach vulnerabilities, anyone can raise the shared
// defense level to patch them. Per-action cooldowns are enforced here,
// against timestamps kept in the participant's own state blob, because
// cooldown sets are mode-specific.
type Siege struct {
	cfg Config
}

func NewSiege() *Siege {
	return &Siege{cfg: Config{
		ID:         "siege",
		Name:       "Attack & Defense",
		MinPlayers: 2,
		MaxPlayers: 6,
		Duration:   10 * time.Minute,
		Policy:     EndImmediately,
		Difficulty: 1.5,
		BaseCoins:  150,
	}}
}

func (e *Siege) Config() Config { return e.cfg }

type siegeAction struct {
	Op     string `json:"op"` // attack | defend | flag
	VulnID string `json:"vuln_id,omitempty"`
	Flag   string `json:"flag,omitempty"`
}

type siegeState struct {
	Breached     []string `json:"breached,omitempty"`
	LastAttackMS int64    `json:"last_attack_ms,omitempty"`
	LastDefendMS int64    `json:"last_defend_ms,omitempty"`
	FlagOK       bool     `json:"flag_ok,omitempty"`
}

type siegeSettings struct {
	DefenseLevel int `json:"defense_level,omitempty"`
}

func (e *Siege) Apply(_ context.Context, ac ActionContext) (Result, error) {
	var act siegeAction
	if err := json.Unmarshal(ac.Raw, &act); err != nil {
		return Result{}, errBadAction
	}
	var st siegeState
	if len(ac.State) > 0 {
		_ = json.Unmarshal(ac.State, &st)
	}
	var settings siegeSettings
	if len(ac.Settings) > 0 {
		_ = json.Unmarshal(ac.Settings, &settings)
	}

	switch act.Op {
	case "attack":
		if onCooldown(st.LastAttackMS, siegeAttackCooldown, ac.Now) {
			return Result{}, errCooldownActive
		}
		vuln := findVuln(ac.Scenario.Vulns, act.VulnID)
		if vuln == nil {
			return Result{}, errUnknownVuln
		}
		for _, id := range st.Breached {
			if id == vuln.ID {
				return Result{}, errAlreadyBreached
			}
		}
		if settings.DefenseLevel >= vuln.MinLevel {
			return Result{}, errVulnPatched
		}
		st.LastAttackMS = ac.Now.UnixMilli()
		st.Breached = append(st.Breached, vuln.ID)
		blob, _ := json.Marshal(st)
		return Result{
			ScoreDelta: vuln.Points,
			StageDelta: 1,
			Completed:  len(st.Breached) >= len(ac.Scenario.Vulns),
			State:      blob,
			Effects:    map[string]any{"op": "attack", "vuln_id": vuln.ID, "breached": len(st.Breached)},
		}, nil

	case "defend":
		if onCooldown(st.LastDefendMS, siegeDefendCooldown, ac.Now) {
			return Result{}, errCooldownActive
		}
		st.LastDefendMS = ac.Now.UnixMilli()
		if settings.DefenseLevel < siegeMaxDefense {
			settings.DefenseLevel++
		}
		stateBlob, _ := json.Marshal(st)
		settingsBlob, _ := json.Marshal(settings)
		return Result{
			ScoreDelta: siegeDefendPoints,
			State:      stateBlob,
			Settings:   settingsBlob,
			Effects:    map[string]any{"op": "defend", "defense_level": settings.DefenseLevel},
		}, nil

	case "flag":
		if ac.Scenario.FinalFlag == "" || act.Flag != ac.Scenario.FinalFlag {
			return Result{}, errWrongFlag
		}
		if st.FlagOK {
			return Result{}, errAlreadyAnswered
		}
		st.FlagOK = true
		blob, _ := json.Marshal(st)
		return Result{
			ScoreDelta: siegeFlagPoints,
			Completed:  true,
			State:      blob,
			Effects:    map[string]any{"op": "flag"},
		}, nil
	}
	return Result{}, errBadAction
}

func onCooldown(lastMS int64, d time.Duration, now time.Time) bool {
	return lastMS > 0 && now.UnixMilli()-lastMS < d.Milliseconds()
}

func findVuln(vulns []content.Vulnerability, id string) *content.Vulnerability {
	for i := range vulns {
		if vulns[i].ID == id {
			return &vulns[i]
		}
	}
	return nil
}
