// Package sow holds the Statement-of-Work document model and the rate
// reconciliation that makes a generated document's arithmetic consistent.
package sow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message roles in a conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn of the conversation with the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RateCardItem is a named role with its hourly rate.
type RateCardItem struct {
	Name string  `json:"name" yaml:"name" toml:"name"`
	Rate float64 `json:"rate" yaml:"rate" toml:"rate"`
}

// SOWData is the Statement-of-Work document.
type SOWData struct {
	ProjectTitle    string    `json:"projectTitle"`
	ClientName      string    `json:"clientName"`
	ProjectOverview string    `json:"projectOverview"`
	ProjectOutcomes Lines     `json:"projectOutcomes"`
	Scopes          []Scope   `json:"scopes"`
	BudgetNote      string    `json:"budgetNote,omitempty"`
	Timeline        *Timeline `json:"timeline,omitempty"`
}

// Scope is a named bundle of work with its deliverables, assumptions and
// staffed roles.
type Scope struct {
	ID            string `json:"id,omitempty"`
	ScopeName     string `json:"scopeName"`
	ScopeOverview string `json:"scopeOverview"`
	Deliverables  Lines  `json:"deliverables"`
	Assumptions   Lines  `json:"assumptions"`
	Roles         []Role `json:"roles"`
	Subtotal      Number `json:"subtotal"`
}

// Role is a staffed role within a scope.
type Role struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Hours       Number `json:"hours"`
	Rate        Rate   `json:"rate"`
	Total       Number `json:"total"`
}

// Timeline is optional phase information.
type Timeline struct {
	Duration string  `json:"duration"`
	Phases   []Phase `json:"phases"`
}

// Phase is one step of a Timeline.
type Phase struct {
	Name         string `json:"name"`
	Duration     string `json:"duration"`
	Deliverables Lines  `json:"deliverables"`
}

// Lines is a list of text items. It also accepts a single string, which is
// split on newlines, so hand-edited documents and model output both decode.
type Lines []string

func (l *Lines) UnmarshalJSON(b []byte) error {
	*l = nil
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	switch s[0] {
	case '"':
		var text string
		if err := json.Unmarshal(b, &text); err != nil {
			return err
		}
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				*l = append(*l, line)
			}
		}
		return nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		out := make(Lines, 0, len(items))
		for _, raw := range items {
			var text string
			if err := json.Unmarshal(raw, &text); err == nil {
				out = append(out, text)
				continue
			}
			if item := strings.TrimSpace(string(raw)); item != "null" {
				out = append(out, item)
			}
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("sow: expected string or array, got %s", s)
	}
}

// Clone returns a deep copy of the document.
func (d SOWData) Clone() SOWData {
	out := d
	out.ProjectOutcomes = cloneLines(d.ProjectOutcomes)
	if d.Scopes != nil {
		out.Scopes = make([]Scope, len(d.Scopes))
		for i, s := range d.Scopes {
			out.Scopes[i] = s.Clone()
		}
	}
	if d.Timeline != nil {
		tl := *d.Timeline
		if d.Timeline.Phases != nil {
			tl.Phases = make([]Phase, len(d.Timeline.Phases))
			for i, p := range d.Timeline.Phases {
				p.Deliverables = cloneLines(p.Deliverables)
				tl.Phases[i] = p
			}
		}
		out.Timeline = &tl
	}
	return out
}

// Clone returns a deep copy of the scope.
func (s Scope) Clone() Scope {
	out := s
	out.Deliverables = cloneLines(s.Deliverables)
	out.Assumptions = cloneLines(s.Assumptions)
	if s.Roles != nil {
		out.Roles = append([]Role(nil), s.Roles...)
	}
	return out
}

func cloneLines(l Lines) Lines {
	if l == nil {
		return nil
	}
	return append(Lines(nil), l...)
}

// SumRoles is the sum of the role totals.
func (s Scope) SumRoles() float64 {
	var sum float64
	for _, r := range s.Roles {
		sum += r.Total.Float()
	}
	return sum
}

// TotalHours is the sum of the role hours.
func (s Scope) TotalHours() float64 {
	var sum float64
	for _, r := range s.Roles {
		sum += r.Hours.Float()
	}
	return sum
}

// AverageRate is the subtotal divided by the hours, rounded to a whole
// amount. It is zero for a scope without hours.
func (s Scope) AverageRate() float64 {
	hours := s.TotalHours()
	if hours == 0 {
		return 0
	}
	return roundHalfUp(s.Subtotal.Float() / hours)
}

// Total is the sum of the scope subtotals.
func (d SOWData) Total() float64 {
	var sum float64
	for _, s := range d.Scopes {
		sum += s.Subtotal.Float()
	}
	return sum
}

// TotalHours is the sum of every scope's hours.
func (d SOWData) TotalHours() float64 {
	var sum float64
	for _, s := range d.Scopes {
		sum += s.TotalHours()
	}
	return sum
}

// FindScope returns the index of the first scope whose id or name equals
// target, or -1.
func (d SOWData) FindScope(target string) int {
	for i, s := range d.Scopes {
		if (s.ID != "" && s.ID == target) || s.ScopeName == target {
			return i
		}
	}
	return -1
}
