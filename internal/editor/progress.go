package editor

import "encoding/json"

// Stage is a state of the update pipeline.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageBudgetChecked    Stage = "budget_checked"
	StageModelInvoked     Stage = "model_invoked"
	StagePatchesExtracted Stage = "patches_extracted"
	StagePatchesApplied   Stage = "patches_applied"
	StageCompiled         Stage = "compiled"
	StageSuccess          Stage = "success"
	StageFailed           Stage = "failed"
)

// Event reports a stage transition.
type Event struct {
	Stage   Stage  `json:"stage"`
	Message string `json:"message"`
	Content any    `json:"content,omitempty"`
}

// Observer is called on every stage transition. It runs on the update's
// goroutine and must not block.
type Observer func(Event)

// progress tracks the current stage of one update.
type progress struct {
	observe Observer
	stage   Stage
}

func (p *progress) emit(stage Stage, message string, content any) {
	p.stage = stage
	if p.observe != nil {
		p.observe(Event{Stage: stage, Message: message, Content: content})
	}
}

// fail stamps err with the stage the pipeline reached and reports it.
func (p *progress) fail(err *Error) *Error {
	if err.Stage == "" {
		err.Stage = p.stage
	}
	if p.observe != nil {
		p.observe(Event{Stage: StageFailed, Message: err.Error(), Content: map[string]any{"kind": err.Kind}})
	}
	p.stage = StageFailed
	return err
}

func batchJSON(v any) string {
	b, err := json.Marshal(map[string]any{"patches": v})
	if err != nil {
		return ""
	}
	return string(b)
}
