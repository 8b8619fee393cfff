package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sow-workbench/internal/render"
)

var (
	showJSON    bool
	showRaw     bool
	showHistory bool
)

var showCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Preview the session's current SOW",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(args[0])
		if err != nil {
			return err
		}
		doc := s.CurrentDocument()
		if showJSON {
			b, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal document: %w", err)
			}
			fmt.Println(string(b))
			return nil
		}
		if showHistory {
			for _, m := range s.History() {
				fmt.Println(titleStyle.Render(m.Role + ":"))
				fmt.Println(m.Content)
				fmt.Println()
			}
		}
		md := render.Markdown(doc)
		if showRaw {
			fmt.Print(md)
		} else {
			fmt.Print(renderMarkdown(md))
		}
		if len(s.ArchitectsLog) > 0 && !showRaw {
			fmt.Println(titleStyle.Render("Architect's log"))
			for _, l := range s.ArchitectsLog {
				fmt.Println(dimStyle.Render("  • " + l))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the document as JSON")
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print plain markdown without terminal styling")
	showCmd.Flags().BoolVar(&showHistory, "history", false, "print the conversation before the document")
}
