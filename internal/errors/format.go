package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// FormatForCLI formats an error for terminal output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	var ie *IndexerError
	if !stderrors.As(err, &ie) {
		ie = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", err.Error()))

	if len(ie.Details) > 0 {
		keys := make([]string, 0, len(ie.Details))
		for k := range ie.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, ie.Details[k]))
		}
	}
	if ie.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ie.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ie.Code))

	return sb.String()
}

type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON representation of the error, used for task results.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	var ie *IndexerError
	if !stderrors.As(err, &ie) {
		ie = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       ie.Code,
		Message:    ie.Message,
		Category:   string(ie.Category),
		Severity:   string(ie.Severity),
		Details:    ie.Details,
		Suggestion: ie.Suggestion,
		Retryable:  ie.Retryable,
	}
	if ie.Cause != nil {
		je.Cause = ie.Cause.Error()
	}

	return json.Marshal(je)
}
