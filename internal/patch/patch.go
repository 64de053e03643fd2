package patch

import (
	"encoding/json"
	"strings"

	"github.com/jonathan/resume-editor/internal/schemas"
	rootschemas "github.com/jonathan/resume-editor/schemas"
)

// Patch is a single exact-match substitution.
type Patch struct {
	Search  string `json:"search"`
	Replace string `json:"replace"`
}

// Batch is the ordered set of patches produced by one model response.
type Batch []Patch

type envelope struct {
	Patches Batch `json:"patches"`
}

// Extract pulls a Batch out of raw model output. A response that opens with a
// code fence is read from the fenced body, so braces in prose after the fence
// are ignored. Otherwise the JSON object is taken greedily from the first '{'
// to the last '}'.
func Extract(raw string) (Batch, error) {
	candidate, ok := fencedObject(raw)
	if !ok {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start < 0 || end < start {
			return nil, &ExtractionError{Message: "response contains no JSON object", Raw: raw}
		}
		candidate = raw[start : end+1]
	}

	if !json.Valid([]byte(candidate)) {
		return nil, &ExtractionError{Message: "response JSON is malformed", Raw: raw}
	}

	if err := schemas.ValidateJSONString(rootschemas.PatchBatch, candidate); err != nil {
		return nil, &ExtractionError{Message: "response does not match the patch batch schema", Raw: raw, Cause: err}
	}

	var env envelope
	if err := json.Unmarshal([]byte(candidate), &env); err != nil {
		return nil, &ExtractionError{Message: "failed to decode patches", Raw: raw, Cause: err}
	}
	if env.Patches == nil {
		env.Patches = Batch{}
	}
	return env.Patches, nil
}

// fencedObject returns the body of a leading ``` fence when it is a complete
// JSON object.
func fencedObject(raw string) (string, bool) {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return "", false
	}
	body := strings.TrimPrefix(text, "```")
	// An info string such as "json" sits alone on the opening line.
	if nl := strings.IndexByte(body, '\n'); nl >= 0 && !strings.ContainsAny(body[:nl], "{ ") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	body = strings.TrimSpace(body)
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") || !json.Valid([]byte(body)) {
		return "", false
	}
	return body, true
}

// Apply runs every patch in order against a working copy of doc. Each search
// must occur exactly once in the text as left by the previous patches. The
// updated text is returned only when the whole batch applies; on any conflict
// the caller gets an error and doc is left as it was.
func Apply(doc string, batch Batch) (string, error) {
	working := doc
	for i, p := range batch {
		next, err := applyOne(working, p)
		if err != nil {
			err.Index = i
			return "", err
		}
		working = next
	}
	return working, nil
}

func applyOne(text string, p Patch) (string, *ConflictError) {
	if p.Search == "" {
		return "", &ConflictError{Reason: NotFound, Search: p.Search}
	}

	switch count := strings.Count(text, p.Search); {
	case count == 1:
		return strings.Replace(text, p.Search, p.Replace, 1), nil
	case count > 1:
		return "", &ConflictError{Reason: Ambiguous, Search: p.Search, Count: count}
	}

	// Models often echo LF where the file has CRLF (or the reverse); retry
	// once with both sides normalised to LF.
	if strings.Contains(text, "\r\n") || strings.Contains(p.Search, "\r\n") {
		normText := strings.ReplaceAll(text, "\r\n", "\n")
		normSearch := strings.ReplaceAll(p.Search, "\r\n", "\n")
		switch count := strings.Count(normText, normSearch); {
		case count == 1:
			return strings.Replace(normText, normSearch, p.Replace, 1), nil
		case count > 1:
			return "", &ConflictError{Reason: Ambiguous, Search: p.Search, Count: count}
		}
	}

	return "", &ConflictError{Reason: NotFound, Search: p.Search}
}
