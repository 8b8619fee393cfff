package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/sow-workbench/internal/ratecard"
	"github.com/KaramelBytes/sow-workbench/internal/render"
	"github.com/KaramelBytes/sow-workbench/internal/sow"
	"github.com/KaramelBytes/sow-workbench/internal/store"
)

var rateCardCmd = &cobra.Command{
	Use:     "ratecard",
	Aliases: []string{"rates"},
	Short:   "Manage the agency rate card used to price roles",
}

var rateCardListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the stored rate card",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		items, err := st.ListRateCard(cmd.Context())
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("(empty rate card; roles will be priced at $0 until rates are added)")
			return nil
		}
		for _, it := range items {
			fmt.Printf("- %-40s $%s/h\n", it.Name, render.Money(it.Rate))
		}
		return nil
	},
}

var rateCardSetCmd = &cobra.Command{
	Use:     "set <role name> <hourly rate>",
	Short:   "Add or update a role's hourly rate",
	Example: `  sowbench ratecard set "Tech - Specialist" 180`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(strings.Join(args[:len(args)-1], " "))
		rate, err := strconv.ParseFloat(strings.TrimPrefix(args[len(args)-1], "$"), 64)
		if err != nil {
			return fmt.Errorf("invalid rate %q: %w", args[len(args)-1], err)
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.RateCard.Upsert(cmd.Context(), sow.RateCardItem{Name: name, Rate: rate}); err != nil {
			return err
		}
		success("%s = $%s/h", name, render.Money(rate))
		return nil
	},
}

var rateCardRemoveCmd = &cobra.Command{
	Use:   "remove <role name>",
	Short: "Remove a role from the rate card",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(strings.Join(args, " "))
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.RateCard.Delete(cmd.Context(), name); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("role %q is not on the rate card", name)
			}
			return err
		}
		success("Removed %s", name)
		return nil
	},
}

var rateCardImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the stored rate card with a YAML, JSON or TOML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := ratecard.Load(args[0])
		if err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.ReplaceRateCard(cmd.Context(), items); err != nil {
			return err
		}
		success("Imported %d roles from %s", len(items), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rateCardCmd)
	rateCardCmd.AddCommand(rateCardListCmd, rateCardSetCmd, rateCardRemoveCmd, rateCardImportCmd)
}
