package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sow-workbench/internal/ai"
	cfgpkg "github.com/KaramelBytes/sow-workbench/internal/config"
	"github.com/KaramelBytes/sow-workbench/internal/utils"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalog and pricing",
	Example: `  sowbench models list --free
  sowbench models list --remote --search gemini
  sowbench models fetch --output ~/.sowbench/models.json`,
}

var (
	modelsFree     bool
	modelsSearch   string
	modelsRemote   bool
	modelsJSON     bool
	modelsProvider string
	fetchOutput    string
)

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models",
	RunE: func(cmd *cobra.Command, args []string) error {
		models := ai.Catalog()
		if modelsRemote {
			remote, err := remoteModels(cmd.Context())
			if err != nil {
				return err
			}
			models = remote
		}
		models = ai.FilterModels(models, modelsSearch, modelsFree)
		if modelsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(models)
		}
		if len(models) == 0 {
			fmt.Println("(no models match)")
			return nil
		}
		for _, m := range models {
			price := "free"
			if !m.Free() {
				price = fmt.Sprintf("$%.4f in / $%.4f out per 1K", m.InputPerK, m.OutputPerK)
			}
			fmt.Printf("- %s  %s\n", titleStyle.Render(m.ID), dimStyle.Render(price))
		}
		return nil
	},
}

var modelsFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the provider's model list and merge it into the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		models, err := remoteModels(cmd.Context())
		if err != nil {
			return err
		}
		ai.MergeCatalog(models)
		if fetchOutput == "" {
			success("Fetched %d models (in-memory only; use --output to keep them)", len(models))
			return nil
		}
		data, err := utils.PrettyJSON(models)
		if err != nil {
			return err
		}
		path := cfgpkg.ExpandHome(fetchOutput)
		if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
			return err
		}
		if err := utils.SafeWriteFile(path, data); err != nil {
			return err
		}
		success("Saved %d models to %s; set models_catalog_file to load them at startup", len(models), path)
		return nil
	},
}

func remoteModels(ctx context.Context) ([]ai.ModelInfo, error) {
	runtime, provider, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: modelsProvider})
	if err != nil {
		return nil, err
	}
	lister, ok := runtime.(ai.ModelLister)
	if !ok {
		return nil, fmt.Errorf("provider %s cannot list models", provider)
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	models, err := lister.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	if len(models) == 0 {
		return nil, errors.New("provider returned no models")
	}
	return models, nil
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd, modelsFetchCmd)

	modelsCmd.PersistentFlags().StringVar(&modelsProvider, "provider", "", "provider to query with --remote/fetch (default from config)")
	modelsListCmd.Flags().BoolVar(&modelsFree, "free", false, "only free models")
	modelsListCmd.Flags().StringVar(&modelsSearch, "search", "", "filter by id or name")
	modelsListCmd.Flags().BoolVar(&modelsRemote, "remote", false, "query the provider instead of the local catalog")
	modelsListCmd.Flags().BoolVar(&modelsJSON, "json", false, "print JSON")
	modelsFetchCmd.Flags().StringVar(&fetchOutput, "output", "", "save the fetched catalog to this JSON file")
}
