// Package workbench persists SOW drafting sessions on disk: the conversation
// with the model, attached briefs and the current document.
package workbench

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/sow-workbench/internal/brief"
	"github.com/KaramelBytes/sow-workbench/internal/sow"
	"github.com/KaramelBytes/sow-workbench/internal/utils"
)

// FileName is the session file inside each session directory.
const FileName = "workbench.json"

// ErrNotFound is returned when no session exists at the requested location.
var ErrNotFound = errors.New("session not found")

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Session is one drafting conversation and the document it produced.
type Session struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Model         string        `json:"model,omitempty"`
	Messages      []sow.Message `json:"messages"`
	Document      *sow.SOWData  `json:"document,omitempty"`
	ArchitectsLog []string      `json:"architects_log,omitempty"`
	Briefs        []Brief       `json:"briefs,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	rootDir string
}

// Brief records a file attached to the conversation.
type Brief struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Tokens  int       `json:"tokens"`
	AddedAt time.Time `json:"added_at"`
}

// ValidateName reports whether name can be used as a session directory.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid session name %q: use letters, digits, '.', '_' or '-'", name)
	}
	return nil
}

// NewSession constructs an in-memory session rooted at rootDir. Call Save to
// persist it.
func NewSession(name, rootDir string) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		Name:      name,
		Messages:  []sow.Message{},
		CreatedAt: now,
		UpdatedAt: now,
		rootDir:   rootDir,
	}
}

// Load reads the session stored in dir.
func Load(dir string) (*Session, error) {
	path := filepath.Join(dir, FileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	s.rootDir = dir
	return &s, nil
}

// RootDir returns the on-disk session directory.
func (s *Session) RootDir() string { return s.rootDir }

// Save writes the session file atomically.
func (s *Session) Save() error {
	if s.rootDir == "" {
		return errors.New("session root directory not set")
	}
	if err := utils.EnsureDir(s.rootDir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	s.UpdatedAt = time.Now()
	data, err := utils.PrettyJSON(s)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(s.rootDir, FileName), data)
}

// AppendMessage adds a turn to the history. Earlier turns are never edited.
func (s *Session) AppendMessage(role, content string) error {
	switch role {
	case sow.RoleUser, sow.RoleAssistant:
	default:
		return fmt.Errorf("unsupported message role %q", role)
	}
	if strings.TrimSpace(content) == "" {
		return errors.New("message content is empty")
	}
	s.Messages = append(s.Messages, sow.Message{Role: role, Content: content})
	s.UpdatedAt = time.Now()
	return nil
}

// History returns a copy of the conversation.
func (s *Session) History() []sow.Message {
	return append([]sow.Message(nil), s.Messages...)
}

// CurrentDocument returns the session's document, or an empty one.
func (s *Session) CurrentDocument() sow.SOWData {
	if s.Document == nil {
		return sow.SOWData{}
	}
	return s.Document.Clone()
}

// SetDocument replaces the session's document with a copy of doc.
func (s *Session) SetDocument(doc sow.SOWData) {
	c := doc.Clone()
	s.Document = &c
	s.UpdatedAt = time.Now()
}

// RecordGeneration stores a generation outcome: the assistant reply goes into
// the history and the document replaces the current one.
func (s *Session) RecordGeneration(doc sow.SOWData, aiMessage string, architectsLog []string) error {
	if err := s.AppendMessage(sow.RoleAssistant, aiMessage); err != nil {
		return err
	}
	s.SetDocument(doc)
	s.ArchitectsLog = append([]string(nil), architectsLog...)
	return nil
}

// AttachBrief reads the file at path and appends its text as a user message.
// Text beyond maxTokens (when positive) is cut.
func (s *Session) AttachBrief(path string, maxTokens int) (*Brief, error) {
	text, err := brief.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("attach brief: %w", err)
	}
	if maxTokens > 0 {
		text = utils.TruncateToTokenLimit(text, maxTokens)
	}
	name := filepath.Base(path)
	msg := fmt.Sprintf("[BRIEF: %s]\n%s", name, text)
	if err := s.AppendMessage(sow.RoleUser, msg); err != nil {
		return nil, err
	}
	b := Brief{Name: name, Path: path, Tokens: brief.EstimateTokens(text), AddedAt: time.Now()}
	s.Briefs = append(s.Briefs, b)
	return &b, nil
}

// Summary is a listing row for a stored session.
type Summary struct {
	Name      string
	Messages  int
	Scopes    int
	Total     float64
	UpdatedAt time.Time
}

// List returns the sessions stored under dir, most recently updated first.
// Directories without a readable session file are skipped.
func List(dir string) ([]Summary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}
	var out []Summary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		sum := Summary{Name: s.Name, Messages: len(s.Messages), UpdatedAt: s.UpdatedAt}
		if s.Document != nil {
			sum.Scopes = len(s.Document.Scopes)
			sum.Total = s.Document.Total()
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}
