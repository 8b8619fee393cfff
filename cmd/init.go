package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sow-workbench/internal/workbench"
)

var (
	initModel  string
	initTitle  string
	initClient string
)

var initCmd = &cobra.Command{
	Use:   "init <session-name>",
	Short: "Start a new SOW session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		dir, err := sessionDir(name)
		if err != nil {
			return err
		}
		// Refuse to overwrite an existing session.
		if _, err := os.Stat(filepath.Join(dir, workbench.FileName)); err == nil {
			return fmt.Errorf("session already exists at %s", dir)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("stat session: %w", err)
		}
		s := workbench.NewSession(name, dir)
		s.Model = initModel
		if initTitle != "" || initClient != "" {
			doc := s.CurrentDocument()
			doc.ProjectTitle = initTitle
			doc.ClientName = initClient
			s.SetDocument(doc)
		}
		if err := s.Save(); err != nil {
			return err
		}
		success("Session initialized: %s", dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initModel, "model", "m", "", "model to use for this session")
	initCmd.Flags().StringVar(&initTitle, "title", "", "project title")
	initCmd.Flags().StringVar(&initClient, "client", "", "client name")
}
