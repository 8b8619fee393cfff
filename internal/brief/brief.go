// Package brief extracts plain text from client briefs (notes, requirement
// docs, spreadsheets) so they can be attached to a workbench conversation.
package brief

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/sow-workbench/internal/utils"
)

// Parser turns one file format into text.
type Parser interface {
	CanParse(filename string) bool
	Parse(path string, content []byte) (string, error)
}

var registry []Parser

// Register adds a parser; earlier registrations win.
func Register(p Parser) {
	registry = append(registry, p)
}

// ErrEmpty is returned when a brief yields no text.
var ErrEmpty = errors.New("brief has no readable text")

// ParseFile reads path with the first parser that accepts its name. Unknown
// extensions are read as plain text.
func ParseFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	text := string(data)
	for _, p := range registry {
		if p.CanParse(path) {
			if text, err = p.Parse(path, data); err != nil {
				return "", err
			}
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmpty)
	}
	return text, nil
}

// EstimateTokens delegates to utils.CountTokens.
func EstimateTokens(text string) int {
	return utils.CountTokens(text)
}

func hasSuffix(name string, exts ...string) bool {
	name = strings.ToLower(name)
	for _, e := range exts {
		if strings.HasSuffix(name, e) {
			return true
		}
	}
	return false
}

func normalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}

func init() {
	Register(txtParser{})
	Register(markdownParser{})
	Register(docxParser{})
	Register(csvParser{})
	Register(xlsxParser{})
}
