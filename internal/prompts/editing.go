package prompts

import (
	"strings"

	"github.com/jonathan/resume-editor/internal/conversation"
)

// EditingFile holds the document editing prompts.
const EditingFile = "editing.json"

// EditRequest is everything the editing prompt is built from.
type EditRequest struct {
	Document       string
	Instruction    string
	JobDescription string
	// History is rendered as given; callers window it first.
	History []conversation.Turn
}

// BuildEditPrompt renders the prompt asking the model for a patch batch.
func BuildEditPrompt(req EditRequest) (string, error) {
	system, err := Get(EditingFile, "system")
	if err != nil {
		return "", err
	}
	update, err := Get(EditingFile, "update")
	if err != nil {
		return "", err
	}

	var jobContext string
	if jd := strings.TrimSpace(req.JobDescription); jd != "" {
		tmpl, err := Get(EditingFile, "job-description")
		if err != nil {
			return "", err
		}
		jobContext = Format(tmpl, map[string]string{"JobDescription": jd}) + "\n\n"
	}

	var history string
	if len(req.History) > 0 {
		tmpl, err := Get(EditingFile, "history-turn")
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		sb.WriteString("PREVIOUS CONVERSATION:\n")
		for _, turn := range req.History {
			sb.WriteString(Format(tmpl, map[string]string{"Role": turn.Role, "Content": turn.Content}))
			sb.WriteString("\n\n")
		}
		history = sb.String()
	}

	return Format(update, map[string]string{
		"System":      system,
		"JobContext":  jobContext,
		"History":     history,
		"Document":    req.Document,
		"Instruction": req.Instruction,
	}), nil
}
