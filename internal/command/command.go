// Package command interprets the workbench slash commands that edit a
// Statement-of-Work document without a round trip to the model.
package command

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/KaramelBytes/sow-workbench/internal/sow"
)

// DefaultRoleRate is the hourly rate used to total roles added by /addRole.
const DefaultRoleRate = 120

// Kind classifies a command failure.
type Kind string

const (
	KindSyntax          Kind = "syntax"
	KindInvalidArgument Kind = "invalid_argument"
	KindNotFound        Kind = "not_found"
	KindUnknown         Kind = "unknown_command"
)

// Error is returned for any command that could not be applied. The document
// passed to Execute is never modified when an Error is returned.
type Error struct {
	Kind    Kind
	Command string
	Message string
}

func (e *Error) Error() string { return e.Message }

func errorf(kind Kind, cmd, format string, args ...any) *Error {
	return &Error{Kind: kind, Command: cmd, Message: fmt.Sprintf(format, args...)}
}

// Usage describes the supported commands.
var Usage = []string{
	"/newScope <scope name>                      add an empty scope",
	"/addRole to <scope id|name> <role> <hours>  add a role to a scope",
	"/setBudget <amount>                         set the budget note",
}

var addRolePattern = regexp.MustCompile(`^to\s+(\S+)\s+(.+)\s+(\S+)$`)

// Interpreter applies slash commands to a document.
type Interpreter struct {
	// DefaultRate totals roles added by /addRole.
	DefaultRate float64
	// NewID returns the id for a scope added by /newScope.
	NewID func() string
}

// New returns an interpreter with the default role rate and uuid-based
// scope ids.
func New() *Interpreter {
	return &Interpreter{
		DefaultRate: DefaultRoleRate,
		NewID:       func() string { return "scope-" + uuid.NewString() },
	}
}

// Execute applies input to doc and returns the updated copy.
func (in *Interpreter) Execute(input string, doc sow.SOWData) (sow.SOWData, error) {
	line := strings.TrimSpace(input)
	name, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		name, rest = line[:i], strings.TrimSpace(line[i+1:])
	}
	switch name {
	case "/newScope":
		return in.newScope(rest, doc)
	case "/addRole":
		return in.addRole(rest, doc)
	case "/setBudget":
		return setBudget(rest, doc)
	default:
		return doc, errorf(KindUnknown, name, "Unknown command: %s", line)
	}
}

func (in *Interpreter) newScope(name string, doc sow.SOWData) (sow.SOWData, error) {
	if name == "" {
		return doc, errorf(KindSyntax, "/newScope", "usage: /newScope <scope name>")
	}
	id := ""
	if in.NewID != nil {
		id = in.NewID()
	}
	out := doc.Clone()
	out.Scopes = append(out.Scopes, sow.Scope{
		ID:            id,
		ScopeName:     name,
		ScopeOverview: fmt.Sprintf("This scope covers %s requirements and deliverables.", strings.ToLower(name)),
		Deliverables:  sow.Lines{name + " deliverable 1", name + " deliverable 2"},
		Assumptions:   sow.Lines{"Client will provide necessary access for " + name, "All required resources are available"},
		Roles:         []sow.Role{},
		Subtotal:      sow.Num(0),
	})
	return out, nil
}

func (in *Interpreter) addRole(args string, doc sow.SOWData) (sow.SOWData, error) {
	m := addRolePattern.FindStringSubmatch(args)
	if m == nil {
		return doc, errorf(KindSyntax, "/addRole", "usage: /addRole to <scope id|name> <role name> <hours>")
	}
	target, roleName, hoursText := m[1], strings.TrimSpace(m[2]), m[3]
	hours, err := strconv.Atoi(hoursText)
	if err != nil || hours <= 0 || strings.Trim(hoursText, "0123456789") != "" {
		return doc, errorf(KindInvalidArgument, "/addRole", "hours must be a positive whole number, got %q", hoursText)
	}
	idx := doc.FindScope(target)
	if idx < 0 {
		return doc, errorf(KindNotFound, "/addRole", "scope %q not found", target)
	}

	out := doc.Clone()
	scope := &out.Scopes[idx]
	scope.Roles = append(scope.Roles, sow.Role{
		Name:        roleName,
		Description: fmt.Sprintf("%s responsibilities for %s", roleName, scope.ScopeName),
		Hours:       sow.Num(float64(hours)),
		Rate:        sow.TextRate(roleName),
		Total:       sow.Num(float64(hours) * in.DefaultRate),
	})
	scope.Subtotal = sow.Num(scope.SumRoles())
	return out, nil
}

func setBudget(arg string, doc sow.SOWData) (sow.SOWData, error) {
	if arg == "" {
		return doc, errorf(KindSyntax, "/setBudget", "usage: /setBudget <amount>")
	}
	digits := strings.ReplaceAll(strings.TrimPrefix(arg, "$"), ",", "")
	amount, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || amount <= 0 {
		return doc, errorf(KindInvalidArgument, "/setBudget", "budget must be a positive whole number, got %q", arg)
	}
	out := doc.Clone()
	out.BudgetNote = fmt.Sprintf("Target budget: $%s. This scope has been carefully crafted to deliver maximum value "+
		"within the specified budget constraints while ensuring all critical objectives are met.", groupThousands(amount))
	return out, nil
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
