package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Catalog is the instrument catalog: ticker prefixes used to filter the
// option and stock snapshots. Loaded once at startup, immutable afterwards.
type Catalog struct {
	OptionPrefixes []string `json:"options_prefixes"`
	StockPrefixes  []string `json:"stock_prefixes"`
}

// LoadCatalog reads the JSON catalog file and applies environment overrides
// (HB_OPTIONS_PREFIXES / HB_STOCK_PREFIXES, comma-separated). A missing file
// yields an empty catalog: no prefixes means no default filtering.
func LoadCatalog(path string) (*Catalog, error) {
	var c Catalog

	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if v := parsePrefixList(os.Getenv("HB_OPTIONS_PREFIXES")); len(v) > 0 {
		c.OptionPrefixes = v
	}
	if v := parsePrefixList(os.Getenv("HB_STOCK_PREFIXES")); len(v) > 0 {
		c.StockPrefixes = v
	}

	c.OptionPrefixes = normalizePrefixes(c.OptionPrefixes)
	c.StockPrefixes = normalizePrefixes(c.StockPrefixes)

	return &c, nil
}

func parsePrefixList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizePrefixes(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.ToUpper(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
