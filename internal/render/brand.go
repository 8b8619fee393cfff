package render

import (
	"context"
	"regexp"
)

// BrandSettings controls the look of exported documents. Empty fields fall
// back to DefaultBrand.
type BrandSettings struct {
	CompanyName    string `json:"companyName,omitempty"`
	LogoURL        string `json:"logoUrl,omitempty"`
	PrimaryColor   string `json:"primaryColor,omitempty"`
	SecondaryColor string `json:"secondaryColor,omitempty"`
	AccentColor    string `json:"accentColor,omitempty"`
	FontFamily     string `json:"fontFamily,omitempty"`
	FontSize       string `json:"fontSize,omitempty"`
}

const defaultLogoURL = "https://i.ibb.co/4gtm4Xm0/Logo-Dark-Green.png"

func DefaultBrand() BrandSettings {
	return BrandSettings{
		CompanyName:    "Social Garden",
		LogoURL:        defaultLogoURL,
		PrimaryColor:   "#0e2e33",
		SecondaryColor: "#16803d",
		AccentColor:    "#20e28f",
		FontFamily:     "Plus Jakarta Sans",
		FontSize:       "14",
	}
}

var (
	hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)
	fontSize = regexp.MustCompile(`^[0-9]{1,2}$`)
	fontName = regexp.MustCompile(`^[A-Za-z0-9 _-]{1,64}$`)
)

// Merge fills empty or malformed fields of b from DefaultBrand.
func (b BrandSettings) Merge() BrandSettings {
	d := DefaultBrand()
	out := b
	if out.CompanyName == "" {
		out.CompanyName = d.CompanyName
	}
	if out.LogoURL == "" {
		out.LogoURL = d.LogoURL
	}
	if !hexColor.MatchString(out.PrimaryColor) {
		out.PrimaryColor = d.PrimaryColor
	}
	if !hexColor.MatchString(out.SecondaryColor) {
		out.SecondaryColor = d.SecondaryColor
	}
	if !hexColor.MatchString(out.AccentColor) {
		out.AccentColor = d.AccentColor
	}
	if !fontName.MatchString(out.FontFamily) {
		out.FontFamily = d.FontFamily
	}
	if !fontSize.MatchString(out.FontSize) {
		out.FontSize = d.FontSize
	}
	return out
}

// BrandSource supplies stored brand settings.
type BrandSource interface {
	BrandSettings(ctx context.Context) (BrandSettings, error)
}

// LoadBrand fetches brand settings from src. A failed fetch yields the
// defaults rather than failing the export.
func LoadBrand(ctx context.Context, src BrandSource) BrandSettings {
	if src == nil {
		return DefaultBrand()
	}
	b, err := src.BrandSettings(ctx)
	if err != nil {
		return DefaultBrand()
	}
	return b.Merge()
}
