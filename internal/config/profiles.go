package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// BranchProfile describes how one retrieval branch queries the engine.
// Expression may contain a {query} placeholder replaced with the
// escaped user query text.
type BranchProfile struct {
	Expression  string             `yaml:"expression"`
	RankProfile string             `yaml:"rank_profile"`
	Fields      map[string]float64 `yaml:"fields"`
}

func (b BranchProfile) ExpressionFor(query string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(query)
	return strings.ReplaceAll(b.Expression, "{query}", escaped)
}

// ScoreModifiers attach additive and multiplicative boosts to both
// branches. The rank profile names select modifier-aware profiles on the
// engine side.
type ScoreModifiers struct {
	LexicalRankProfile string             `yaml:"lexical_rank_profile"`
	TensorRankProfile  string             `yaml:"tensor_rank_profile"`
	Add                map[string]float64 `yaml:"add"`
	Mult               map[string]float64 `yaml:"mult"`
}

func (m ScoreModifiers) Empty() bool {
	return len(m.Add) == 0 && len(m.Mult) == 0
}

type SearchProfile struct {
	Lexical        BranchProfile  `yaml:"lexical"`
	Tensor         BranchProfile  `yaml:"tensor"`
	ScoreModifiers ScoreModifiers `yaml:"score_modifiers"`
}

type SearchProfiles struct {
	DefaultProfile string                   `yaml:"default_profile"`
	Profiles       map[string]SearchProfile `yaml:"profiles"`
}

func LoadSearchProfiles(path string) (SearchProfiles, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SearchProfiles{}, fmt.Errorf("read search profiles: %w", err)
	}

	var profiles SearchProfiles
	if err := yaml.Unmarshal(raw, &profiles); err != nil {
		return SearchProfiles{}, fmt.Errorf("parse search profiles: %w", err)
	}
	if len(profiles.Profiles) == 0 {
		return SearchProfiles{}, fmt.Errorf("search profiles: no profiles defined")
	}
	if profiles.DefaultProfile == "" {
		return SearchProfiles{}, fmt.Errorf("search profiles: default_profile is required")
	}
	if _, ok := profiles.Profiles[profiles.DefaultProfile]; !ok {
		return SearchProfiles{}, fmt.Errorf("search profiles: default_profile %q not defined", profiles.DefaultProfile)
	}
	return profiles, nil
}

// Resolve returns the named profile, or the default when name is empty.
func (p SearchProfiles) Resolve(name string) (SearchProfile, error) {
	if name == "" {
		name = p.DefaultProfile
	}
	profile, ok := p.Profiles[name]
	if !ok {
		return SearchProfile{}, fmt.Errorf("unknown search profile %q", name)
	}
	return profile, nil
}
