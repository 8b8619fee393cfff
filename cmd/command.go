package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sow-workbench/internal/command"
	"github.com/KaramelBytes/sow-workbench/internal/render"
	"github.com/KaramelBytes/sow-workbench/internal/workbench"
)

var commandCmd = &cobra.Command{
	Use:   "command <session> </command args...>",
	Short: "Apply a slash command to the session's SOW",
	Long: "Apply a slash command to the session's current document without calling the model.\n\nCommands:\n  " +
		strings.Join(command.Usage, "\n  "),
	Example: `  sowbench command acme /newScope Discovery
  sowbench command acme /addRole to scope-1 "Tech - Specialist" 12
  sowbench command acme /setBudget 25,000`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(args[0])
		if err != nil {
			return err
		}
		return applyCommand(s, strings.Join(args[1:], " "))
	},
}

func applyCommand(s *workbench.Session, input string) error {
	doc, err := command.New().Execute(input, s.CurrentDocument())
	if err != nil {
		var cmdErr *command.Error
		if errors.As(err, &cmdErr) && cmdErr.Kind == command.KindUnknown {
			return fmt.Errorf("%s\n\nCommands:\n  %s", cmdErr.Message, strings.Join(command.Usage, "\n  "))
		}
		return err
	}
	s.SetDocument(doc)
	if err := s.Save(); err != nil {
		return err
	}
	success("%s", input)
	fmt.Println(dimStyle.Render(fmt.Sprintf("%d scopes, $%s total", len(doc.Scopes), render.Money(doc.Total()))))
	return nil
}

func init() {
	rootCmd.AddCommand(commandCmd)
}
