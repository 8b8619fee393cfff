package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sow-workbench/internal/render"
	"github.com/KaramelBytes/sow-workbench/internal/store"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "View or change export branding and the selected model",
}

var settingsBrandCmd = &cobra.Command{
	Use:   "brand [key=value...]",
	Short: "Show brand settings, or update the given fields",
	Long: `Show brand settings, or update the given fields. Keys: companyName, logoUrl,
primaryColor, secondaryColor, accentColor, fontFamily, fontSize. Invalid
values fall back to the defaults when documents are rendered.`,
	Example: `  sowbench settings brand
  sowbench settings brand companyName="Leaf Digital" primaryColor=#123456`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := cmd.Context()
		b, err := st.Settings.BrandSettings(ctx)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			out, err := json.MarshalIndent(b, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		}
		for _, kv := range args {
			k, v, found := strings.Cut(kv, "=")
			if !found {
				return fmt.Errorf("expected key=value, got %q", kv)
			}
			if err := setBrandField(&b, strings.TrimSpace(k), strings.TrimSpace(v)); err != nil {
				return err
			}
		}
		if err := st.Settings.SaveBrandSettings(ctx, b); err != nil {
			return err
		}
		success("Saved brand settings")
		return nil
	},
}

func setBrandField(b *render.BrandSettings, key, val string) error {
	fields := map[string]*string{
		"companyName":    &b.CompanyName,
		"logoUrl":        &b.LogoURL,
		"primaryColor":   &b.PrimaryColor,
		"secondaryColor": &b.SecondaryColor,
		"accentColor":    &b.AccentColor,
		"fontFamily":     &b.FontFamily,
		"fontSize":       &b.FontSize,
	}
	p, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown brand field %q", key)
	}
	*p = val
	return nil
}

var settingsModelCmd = &cobra.Command{
	Use:   "model [model-id]",
	Short: "Show or set the model used when a session has none",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		ctx := cmd.Context()
		if len(args) == 0 {
			m, err := st.Settings.SelectedModel(ctx)
			switch {
			case errors.Is(err, store.ErrNotFound):
				fmt.Println(dimStyle.Render("(none selected; config default_model applies)"))
				return nil
			case err != nil:
				return err
			}
			fmt.Println(m)
			return nil
		}
		if err := st.Settings.SaveSelectedModel(ctx, args[0]); err != nil {
			return err
		}
		success("Selected model %s", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsBrandCmd, settingsModelCmd)
}
