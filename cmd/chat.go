package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KaramelBytes/sow-workbench/internal/ai"
	"github.com/KaramelBytes/sow-workbench/internal/generation"
	"github.com/KaramelBytes/sow-workbench/internal/ratecard"
	"github.com/KaramelBytes/sow-workbench/internal/render"
	"github.com/KaramelBytes/sow-workbench/internal/sow"
	"github.com/KaramelBytes/sow-workbench/internal/utils"
)

var (
	chatAttach         []string
	chatModel          string
	chatProvider       string
	chatOllamaHost     string
	chatRateCardFile   string
	chatDryRun         bool
	chatJSON           bool
	chatMaxBriefTokens int
)

var chatCmd = &cobra.Command{
	Use:   "chat <session> [message...]",
	Short: "Send a message to the AI architect and update the session's SOW",
	Long: `Send a message to the AI architect. The whole conversation is sent on every
turn, the returned document is reconciled against the rate card and replaces
the session's current SOW. A message starting with "/" is applied as a slash
command instead (see "sowbench command --help").`,
	Example: `  sowbench chat acme "Rebuild the marketing site, 3 month timeline"
  sowbench chat acme --attach brief.docx "Draft a SOW from this brief"
  sowbench chat acme "/setBudget 25000"
  sowbench chat acme --dry-run "Add a discovery phase"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(args[0])
		if err != nil {
			return err
		}
		message := strings.TrimSpace(strings.Join(args[1:], " "))
		if message == "" && len(chatAttach) == 0 {
			return errors.New("nothing to send: give a message or --attach a brief")
		}
		if strings.HasPrefix(message, "/") && len(chatAttach) == 0 {
			return applyCommand(s, message)
		}

		for _, path := range chatAttach {
			b, err := s.AttachBrief(path, chatMaxBriefTokens)
			if err != nil {
				return err
			}
			fmt.Println(dimStyle.Render(fmt.Sprintf("attached %s (~%d tokens)", b.Name, b.Tokens)))
		}
		if message != "" {
			if err := s.AppendMessage(sow.RoleUser, message); err != nil {
				return err
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		card, selected, err := chatInputs(ctx)
		if err != nil {
			return err
		}
		model := selectModel(s, selected, cfg, chatModel)

		runtime, provider, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: chatProvider, OllamaHost: chatOllamaHost})
		if err != nil {
			return err
		}
		pipeline, err := newPipeline(runtime, cfg)
		if err != nil {
			return err
		}
		req := generation.Request{History: s.History(), RateCard: card, Model: model}

		if chatDryRun {
			return printDryRun(pipeline, req, provider)
		}

		logger.Debug("generating", zap.String("session", s.Name), zap.String("model", model), zap.String("provider", provider), zap.Int("turns", len(req.History)))
		res, err := pipeline.Generate(ctx, req)
		if err != nil {
			var rerr *generation.ResponseError
			if errors.As(err, &rerr) {
				logger.Debug("raw model output", zap.String("raw", rerr.Excerpt(2000)))
			}
			return err
		}
		if err := s.RecordGeneration(res.SOWData, res.AIMessage, res.ArchitectsLog); err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return err
		}
		return printResult(res)
	},
}

// chatInputs resolves the rate card (file flag, then config file, then the
// settings database) and the model selected in settings.
func chatInputs(ctx context.Context) ([]sow.RateCardItem, string, error) {
	path := chatRateCardFile
	if path == "" && cfg != nil {
		path = cfg.RateCardFile
	}
	st, err := openStore()
	if err != nil {
		if path == "" {
			return nil, "", err
		}
		logger.Warn("settings database unavailable", zap.Error(err))
		card, err := ratecard.Load(path)
		return card, "", err
	}
	defer st.Close()
	selected := storedModel(ctx, st)
	if path != "" {
		card, err := ratecard.Load(path)
		return card, selected, err
	}
	card, err := st.ListRateCard(ctx)
	return card, selected, err
}

func printDryRun(p *generation.Pipeline, req generation.Request, provider string) error {
	msgs, err := p.Messages(req)
	if err != nil {
		return err
	}
	sections := map[string]string{}
	for i, m := range msgs {
		key := fmt.Sprintf("%02d %s", i, m.Role)
		sections[key] = m.Content
	}
	counts := utils.TokenBreakdown(sections)
	keys := make([]string, 0, len(counts))
	total := 0
	for k, n := range counts {
		keys = append(keys, k)
		total += n
	}
	sort.Strings(keys)

	model := p.Model(req.Model)
	fmt.Println(titleStyle.Render("Dry run"), dimStyle.Render(fmt.Sprintf("(%s via %s)", model, provider)))
	for _, k := range keys {
		fmt.Printf("  %-16s ~%d tokens\n", k, counts[k])
	}
	fmt.Printf("  %-16s ~%d tokens\n", "total", total)
	maxOut := generation.DefaultSampling().MaxTokens
	if cfg != nil && cfg.MaxTokens > 0 {
		maxOut = cfg.MaxTokens
	}
	if mi, ok := ai.LookupModel(model); ok && mi.ContextTokens > 0 && total+maxOut > mi.ContextTokens {
		fmt.Println(warnStyle.Render(fmt.Sprintf("⚠ prompt plus %d output tokens exceeds the %d-token context window", maxOut, mi.ContextTokens)))
	}
	if cost, ok := ai.EstimateCostUSD(model, total, maxOut); ok {
		fmt.Printf("  estimated cost  ≤ $%.4f\n", cost)
	} else {
		fmt.Println(dimStyle.Render("  no pricing known for this model"))
	}
	return nil
}

func printResult(res *generation.Result) error {
	if chatJSON {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Println(string(b))
		return nil
	}
	fmt.Print(renderMarkdown(res.AIMessage))
	if len(res.ArchitectsLog) > 0 {
		fmt.Println(titleStyle.Render("Architect's log"))
		for _, l := range res.ArchitectsLog {
			fmt.Println(dimStyle.Render("  • " + l))
		}
	}
	if res.Truncated {
		fmt.Println(warnStyle.Render(fmt.Sprintf("⚠ the model stopped early (%s); the document may be incomplete", res.FinishReason)))
	}
	doc := res.SOWData
	fmt.Printf("\n%s %d scopes, %s hours, $%s total\n", successStyle.Render("✓"), len(doc.Scopes), render.Money(doc.TotalHours()), render.Money(doc.Total()))
	if res.Usage.TotalTokens > 0 {
		line := fmt.Sprintf("%s · %d prompt + %d completion tokens", res.Model, res.Usage.PromptTokens, res.Usage.CompletionTokens)
		if cost, ok := ai.EstimateCostUSD(res.Model, res.Usage.PromptTokens, res.Usage.CompletionTokens); ok && cost > 0 {
			line += fmt.Sprintf(" · ~$%.4f", cost)
		}
		fmt.Println(dimStyle.Render(line))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringArrayVarP(&chatAttach, "attach", "a", nil, "attach a brief (txt, md, docx, csv, tsv, xlsx); repeatable")
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "model override")
	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "runtime provider: openrouter, ollama or gemini")
	chatCmd.Flags().StringVar(&chatOllamaHost, "ollama-host", "", "Ollama host (default http://127.0.0.1:11434)")
	chatCmd.Flags().StringVar(&chatRateCardFile, "rate-card", "", "rate card file (yaml, json or toml) instead of the stored card")
	chatCmd.Flags().BoolVar(&chatDryRun, "dry-run", false, "show the prompt size and cost estimate without calling the model")
	chatCmd.Flags().BoolVar(&chatJSON, "json", false, "print the full result as JSON")
	chatCmd.Flags().IntVar(&chatMaxBriefTokens, "max-brief-tokens", 12000, "truncate each attached brief to roughly this many tokens (0 = no limit)")
}

