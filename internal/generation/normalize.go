package generation

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/KaramelBytes/sow-workbench/internal/sow"
)

// DefaultAIMessage is reported when the model returned a bare document
// instead of the wrapped response.
const DefaultAIMessage = "Generated SOW data based on conversation"

// Normalize turns an extracted JSON object into a Result. Two shapes are
// accepted: the wrapper {sowData, aiMessage, architectsLog?} and a bare
// document with a non-empty projectTitle. The document is not reconciled.
func Normalize(obj json.RawMessage) (*Result, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(obj, &fields); err != nil {
		return nil, &ResponseError{Reason: "response is not a JSON object", Raw: string(obj), Err: err}
	}

	if rawDoc, ok := fields["sowData"]; ok && isObject(rawDoc) {
		var msg string
		if err := json.Unmarshal(fields["aiMessage"], &msg); err == nil && strings.TrimSpace(msg) != "" {
			res := &Result{AIMessage: msg, ArchitectsLog: []string{}}
			if err := json.Unmarshal(rawDoc, &res.SOWData); err != nil {
				return nil, &ResponseError{Reason: "sowData does not match the document shape", Raw: string(obj), Err: err}
			}
			if rawLog, ok := fields["architectsLog"]; ok {
				var log sow.Lines
				if err := json.Unmarshal(rawLog, &log); err == nil && log != nil {
					res.ArchitectsLog = log
				}
			}
			return res, nil
		}
	}

	var title string
	if err := json.Unmarshal(fields["projectTitle"], &title); err == nil && title != "" {
		res := &Result{AIMessage: DefaultAIMessage, ArchitectsLog: []string{}}
		if err := json.Unmarshal(obj, &res.SOWData); err != nil {
			return nil, &ResponseError{Reason: "document does not match the expected shape", Raw: string(obj), Err: err}
		}
		return res, nil
	}

	return nil, &ResponseError{Reason: "Invalid response format", Raw: string(obj), Err: errors.New("neither sowData/aiMessage nor projectTitle present")}
}

func isObject(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "{")
}
