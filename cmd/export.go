package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/sow-workbench/internal/pdf"
	"github.com/KaramelBytes/sow-workbench/internal/render"
	"github.com/KaramelBytes/sow-workbench/internal/sow"
	"github.com/KaramelBytes/sow-workbench/internal/utils"
)

var (
	exportFormat string
	exportOut    string
)

var exportFormats = []string{"html", "xlsx", "pdf"}

var exportCmd = &cobra.Command{
	Use:   "export <session>",
	Short: "Export the session's SOW as HTML, XLSX or PDF",
	Example: `  sowbench export acme --format xlsx
  sowbench export acme --format all --out ./exports`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(args[0])
		if err != nil {
			return err
		}
		formats, err := parseFormats(exportFormat)
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(exportOut); err != nil {
			return err
		}

		brand := render.DefaultBrand()
		if st, err := openStore(); err != nil {
			logger.Warn("settings database unavailable, using default brand", zap.Error(err))
		} else {
			brand = render.LoadBrand(cmd.Context(), st.Settings)
			_ = st.Close()
		}

		doc := s.CurrentDocument()
		now := time.Now()
		g, ctx := errgroup.WithContext(cmd.Context())
		written := make([]string, len(formats))
		for i, f := range formats {
			g.Go(func() error {
				data, err := exportBytes(ctx, f, doc, brand)
				if err != nil {
					return fmt.Errorf("%s: %w", f, err)
				}
				path := filepath.Join(exportOut, render.Filename(doc.ProjectTitle, f, now))
				if err := utils.SafeWriteFile(path, data); err != nil {
					return err
				}
				written[i] = path
				return nil
			})
		}
		err = g.Wait()
		for _, p := range written {
			if p != "" {
				success("Wrote %s", p)
			}
		}
		return err
	},
}

func parseFormats(v string) ([]string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "all" {
		return exportFormats, nil
	}
	var out []string
	for _, f := range strings.Split(v, ",") {
		f = strings.TrimSpace(f)
		switch f {
		case "html", "xlsx", "pdf":
			out = append(out, f)
		case "":
		default:
			return nil, fmt.Errorf("unsupported --format %q (use html, xlsx, pdf or all)", f)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("--format is required")
	}
	return out, nil
}

func exportBytes(ctx context.Context, format string, doc sow.SOWData, brand render.BrandSettings) ([]byte, error) {
	switch format {
	case "xlsx":
		var buf bytes.Buffer
		if err := render.WriteWorkbook(&buf, doc, brand); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case "html", "pdf":
		html, err := render.HTML(doc, brand)
		if err != nil {
			return nil, err
		}
		if format == "html" {
			return []byte(html), nil
		}
		data, err := pdfRenderer(cfg).Render(ctx, html, render.Filename(doc.ProjectTitle, "pdf", time.Now()))
		if errors.Is(err, pdf.ErrUnavailable) {
			return nil, fmt.Errorf("%w (configure pdf_endpoints or set pdf_local_chrome)", err)
		}
		return data, err
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "html", "html, xlsx, pdf, a comma list, or all")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "output directory")
}
