package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sow-workbench/internal/render"
	"github.com/KaramelBytes/sow-workbench/internal/workbench"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List SOW sessions, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := workbenchDir()
		if err != nil {
			return err
		}
		sessions, err := workbench.List(root)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			fmt.Println("(no sessions)")
			return nil
		}
		for _, s := range sessions {
			fmt.Printf("- %s  %s\n", titleStyle.Render(s.Name),
				dimStyle.Render(fmt.Sprintf("%d messages, %d scopes, $%s, updated %s",
					s.Messages, s.Scopes, render.Money(s.Total), s.UpdatedAt.Format("2006-01-02 15:04"))))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
