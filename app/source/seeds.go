package source

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/postcomb/postcomb/app/database"
)

// SeedFile describes sources to register at startup, one YAML file per
// owner. Existing sources (matched by URL) are left untouched.
type SeedFile struct {
	User    string       `yaml:"user"`
	Sources []SeedSource `yaml:"sources"`
}

type SeedSource struct {
	Name                 string   `yaml:"name"`
	SourceType           string   `yaml:"type"`
	URL                  string   `yaml:"url"`
	ExtractionMethod     string   `yaml:"extraction_method"`
	ItemSelector         string   `yaml:"item_selector"`
	TitleSelector        string   `yaml:"title_selector"`
	LinkSelector         string   `yaml:"link_selector"`
	SummarySelector      string   `yaml:"summary_selector"`
	IncludeKeywords      []string `yaml:"include_keywords"`
	ExcludeKeywords      []string `yaml:"exclude_keywords"`
	Categories           []string `yaml:"categories"`
	AutoPost             bool     `yaml:"auto_post"`
	PostDelayMinutes     int      `yaml:"post_delay_minutes"`
	CheckIntervalMinutes int      `yaml:"check_interval_minutes"`
}

func LoadSeedFiles(dir string) ([]SeedFile, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find seed files: %w", err)
	}

	var seeds []SeedFile
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file %s: %w", file, err)
		}

		var seed SeedFile
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("failed to parse seed file %s: %w", file, err)
		}

		if err := validateSeed(&seed); err != nil {
			return nil, fmt.Errorf("invalid seed file %s: %w", file, err)
		}

		seeds = append(seeds, seed)
	}

	return seeds, nil
}

func validateSeed(seed *SeedFile) error {
	if seed.User == "" {
		return fmt.Errorf("missing user")
	}

	for i, s := range seed.Sources {
		if s.URL == "" {
			return fmt.Errorf("source %d: missing url", i)
		}
		if s.Name == "" {
			return fmt.Errorf("source %d: missing name", i)
		}
		switch s.ExtractionMethod {
		case "rss", "css", "article":
		default:
			return fmt.Errorf("source %d: unknown extraction method %q", i, s.ExtractionMethod)
		}
		if s.ExtractionMethod == "css" && s.ItemSelector == "" {
			return fmt.Errorf("source %d: css extraction requires item_selector", i)
		}
	}

	return nil
}

// ApplySeeds registers seed sources for their owners. Returns how many new
// sources were created.
func ApplySeeds(seeds []SeedFile, users database.UserRepository, sources database.SourceRepository) (int, error) {
	created := 0

	for _, seed := range seeds {
		userID, err := users.EnsureUser(seed.User)
		if err != nil {
			return created, fmt.Errorf("failed to ensure seed user %s: %w", seed.User, err)
		}

		for _, s := range seed.Sources {
			existing, err := sources.GetSourceByURL(userID, s.URL)
			if err != nil {
				return created, fmt.Errorf("failed to check seed source %s: %w", s.URL, err)
			}
			if existing != nil {
				continue
			}

			interval := s.CheckIntervalMinutes
			if interval <= 0 {
				interval = 60
			}

			sourceType := s.SourceType
			if sourceType == "" {
				sourceType = "rss"
			}

			_, err = sources.CreateSource(&database.ContentSource{
				UserID:               userID,
				Name:                 s.Name,
				SourceType:           sourceType,
				URL:                  s.URL,
				ExtractionMethod:     s.ExtractionMethod,
				ItemSelector:         s.ItemSelector,
				TitleSelector:        s.TitleSelector,
				LinkSelector:         s.LinkSelector,
				SummarySelector:      s.SummarySelector,
				IncludeKeywords:      s.IncludeKeywords,
				ExcludeKeywords:      s.ExcludeKeywords,
				Categories:           s.Categories,
				AutoPost:             s.AutoPost,
				PostDelayMinutes:     s.PostDelayMinutes,
				CheckIntervalMinutes: interval,
				IsActive:             true,
			})
			if err != nil {
				return created, fmt.Errorf("failed to create seed source %s: %w", s.URL, err)
			}

			created++
		}
	}

	return created, nil
}
