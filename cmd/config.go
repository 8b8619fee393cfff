package cmd

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"

	cfgpkg "github.com/KaramelBytes/sow-workbench/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set sowbench configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		for _, key := range cfgpkg.Keys {
			fmt.Printf("%s: %s\n", key, configValue(cfg, key))
		}
		return nil
	},
}

// configValue renders one key for display; secrets are masked.
func configValue(c *cfgpkg.Global, key string) string {
	switch key {
	case "api_key":
		return mask(c.APIKey)
	case "gemini_api_key":
		return mask(c.GeminiAPIKey)
	}
	v := reflect.ValueOf(*c)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).Tag.Get("mapstructure") != key {
			continue
		}
		f := v.Field(i)
		if f.Kind() == reflect.Slice {
			parts := make([]string, f.Len())
			for j := range parts {
				parts[j] = fmt.Sprint(f.Index(j).Interface())
			}
			return strings.Join(parts, ",")
		}
		return fmt.Sprint(f.Interface())
	}
	return ""
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Long:  "Set a config value and save to disk. Keys:\n  " + strings.Join(cfgpkg.Keys, "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := cfg.Set(key, val); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		success("Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
