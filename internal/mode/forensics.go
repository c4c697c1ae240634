package mode

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Forensics: a question bank per scenario. Answers are case-insensitive;
// a question scores once, wrong answers can be retried.
type Forensics struct {
	cfg Config
}

func NewForensics() *Forensics {
	return &Forensics{cfg: Config{
		ID:         "forensics",
		Name:       "Forensic Q&A",
		MinPlayers: 2,
		MaxPlayers: 8,
		Duration:   8 * time.Minute,
		Policy:     EndAfterGrace,
		Grace:      45 * time.Second,
		Difficulty: 1.2,
		BaseCoins:  120,
	}}
}

func (e *Forensics) Config() Config { return e.cfg }

type forensicsAction struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type forensicsState struct {
	Answered []string `json:"answered,omitempty"`
}

func (e *Forensics) Apply(_ context.Context, ac ActionContext) (Result, error) {
	var act forensicsAction
	if err := json.Unmarshal(ac.Raw, &act); err != nil || act.QuestionID == "" {
		return Result{}, errBadAction
	}
	var st forensicsState
	if len(ac.State) > 0 {
		_ = json.Unmarshal(ac.State, &st)
	}
	for _, id := range st.Answered {
		if id == act.QuestionID {
			return Result{}, errAlreadyAnswered
		}
	}
	qIdx := -1
	for i, q := range ac.Scenario.Questions {
		if q.ID == act.QuestionID {
			qIdx = i
			break
		}
	}
	if qIdx < 0 {
		return Result{}, errUnknownQuestion
	}
	question := ac.Scenario.Questions[qIdx]
	if !strings.EqualFold(strings.TrimSpace(act.Answer), question.Answer) {
		return Result{}, errWrongAnswer
	}
	st.Answered = append(st.Answered, act.QuestionID)
	blob, _ := json.Marshal(st)
	return Result{
		ScoreDelta: question.Points,
		StageDelta: 1,
		Completed:  len(st.Answered) >= len(ac.Scenario.Questions),
		State:      blob,
		Effects:    map[string]any{"question_id": act.QuestionID, "answered": len(st.Answered)},
	}, nil
}
