package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/modernsoft/estock-support/backend/internal/model/knowledge"
)

// Catalog 是可选的 YAML 覆盖文件，用于替换界面截图和默认公司信息。
//
//	screens:
//	  sales: https://cdn.example.com/sales.png
//	company:
//	  phone: "0100000000"
type Catalog struct {
	Screens map[string]string      `yaml:"screens"`
	Company *knowledge.CompanyInfo `yaml:"company"`
}

// LoadCatalog reads path and merges it over the built-in defaults.
// An empty path returns the defaults unchanged.
func LoadCatalog(path string) (knowledge.ScreenCatalog, knowledge.CompanyInfo, error) {
	screens := knowledge.DefaultScreenCatalog()
	company := knowledge.DefaultCompanyInfo()

	if strings.TrimSpace(path) == "" {
		return screens, company, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, knowledge.CompanyInfo{}, fmt.Errorf("read catalog: %w", err)
	}

	var catalog Catalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, knowledge.CompanyInfo{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	for name, url := range catalog.Screens {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		screens[key] = strings.TrimSpace(url)
	}

	if c := catalog.Company; c != nil {
		company = mergeCompany(company, *c)
	}

	return screens, company, nil
}

func mergeCompany(base, override knowledge.CompanyInfo) knowledge.CompanyInfo {
	if override.Address != "" {
		base.Address = override.Address
	}
	if override.Phone != "" {
		base.Phone = override.Phone
	}
	if override.Email != "" {
		base.Email = override.Email
	}
	if override.WhatsApp != "" {
		base.WhatsApp = override.WhatsApp
	}
	if override.FooterText != "" {
		base.FooterText = override.FooterText
	}
	return base
}
