// Package config loads retailer site configurations, merges shared
// category defaults and validates the result before a crawl starts.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"

	"retail-crawler/internal/types"
)

// CategoryDir is the sub-directory holding shared category defaults
const CategoryDir = "categories"

var siteExtensions = []string{".yaml", ".yml", ".json", ".json5"}

// ErrNotFound is returned when no file exists for a site name
var ErrNotFound = errors.New("site configuration not found")

// LoadDir loads and prepares every site file directly inside dir
func LoadDir(dir string) ([]*types.SiteConfig, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !isSiteFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	sites := make([]*types.SiteConfig, 0, len(names))
	var errs []error
	for _, name := range names {
		site, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sites = append(sites, site)
	}
	return sites, errors.Join(errs...)
}

// LoadSite loads the site called name from dir, trying each known extension
func LoadSite(dir, name string) (*types.SiteConfig, error) {
	for _, ext := range siteExtensions {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, name, dir)
}

// LoadFile decodes one site file, merges its category defaults from the
// sibling categories directory and prepares it for crawling
func LoadFile(path string) (*types.SiteConfig, error) {
	site := &types.SiteConfig{}
	if err := decodeFile(path, site); err != nil {
		return nil, err
	}
	if site.Name == "" {
		site.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if site.Category != "" {
		defaults, err := loadCategory(filepath.Join(filepath.Dir(path), CategoryDir), site.Category)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := MergeDefaults(site, defaults); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if err := Prepare(site); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return site, nil
}

// MergeDefaults fills every key the site leaves unset from defaults.
// Keys set by the site always win.
func MergeDefaults(site *types.SiteConfig, defaults *types.SiteConfig) error {
	if err := mergo.Merge(site, defaults, mergo.WithoutDereference); err != nil {
		return fmt.Errorf("failed to merge category defaults: %w", err)
	}
	return nil
}

func loadCategory(dir, category string) (*types.SiteConfig, error) {
	for _, ext := range siteExtensions {
		path := filepath.Join(dir, category+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		defaults := &types.SiteConfig{}
		if err := decodeFile(path, defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	return nil, fmt.Errorf("%w: category %s in %s", ErrNotFound, category, dir)
}

func decodeFile(path string, out *types.SiteConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".json5":
		err = decodeJSON5(data, out)
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		err = decoder.Decode(out)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", ErrInvalidConfig, path, err)
	}
	return nil
}

// decodeJSON5 reads JSON5 through a generic tree so that unknown keys are
// rejected as they are in YAML files
func decodeJSON5(data []byte, out *types.SiteConfig) error {
	var tree interface{}
	if err := json5.Unmarshal(data, &tree); err != nil {
		return err
	}
	normalized, err := json.Marshal(tree)
	if err != nil {
		return err
	}
	decoder := json.NewDecoder(bytes.NewReader(normalized))
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func isSiteFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range siteExtensions {
		if ext == known {
			return true
		}
	}
	return false
}
