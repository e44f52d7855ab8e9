package model

import (
	"net/http"
	"strings"

	"github.com/evermore-app/evermore/internal/config"
	"github.com/evermore-app/evermore/internal/theme"
)

type PageData struct {
	SiteName string

	PageURL string

	Theme string

	ShowToolbar  *bool
	IsWizardPage *bool
}

func NewPageData(r *http.Request) *PageData {
	return &PageData{
		SiteName: config.SiteName(),
		PageURL:  r.URL.Path,
		Theme:    theme.GetThemeFromRequest(r),
	}
}

func (pd *PageData) IsMemorial() bool {
	if pd.ShowToolbar == nil {
		return strings.HasPrefix(pd.PageURL, config.MemorialsURLPath)
	}
	return *pd.ShowToolbar
}

func (pd *PageData) IsWizard() bool {
	if pd.IsWizardPage == nil {
		return strings.HasPrefix(pd.PageURL, config.WizardURLPath)
	}
	return *pd.IsWizardPage
}
