package analytics

import (
	"embed"
	"fmt"
	"sync"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/osteele/liquid"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// RecommendationCopy is the message copy for one category
type RecommendationCopy struct {
	Headline string `yaml:"headline"`
	Action   string `yaml:"action"`
}

type recommendationFile struct {
	Categories map[models.Category]RecommendationCopy `yaml:"categories"`
	Levels     map[models.Level]string                `yaml:"levels"`
}

type efficiencyFile struct {
	NoData string                                                `yaml:"no_data"`
	Rules  map[models.PerformanceTier]map[models.Category]string `yaml:"rules"`
}

// ChallengeTemplate is one entry of a level's challenge pool
type ChallengeTemplate struct {
	ID           string `yaml:"id"`
	Title        string `yaml:"title"`
	Description  string `yaml:"description"`
	TargetMetric string `yaml:"target_metric"`
	BaseTarget   int    `yaml:"base_target"`
	BaseReward   int    `yaml:"base_reward"`
}

// Catalog holds the rule tables and template pools used to word results
type Catalog struct {
	recommendations recommendationFile
	efficiency      efficiencyFile
	challenges      map[models.Level][]ChallengeTemplate
	outcomes        outcomeFile

	engine *liquid.Engine
	parsed sync.Map // map[string]*liquid.Template
}

var defaultCatalog = sync.OnceValues(LoadCatalog)

// DefaultCatalog returns the catalog built from the embedded templates
func DefaultCatalog() (*Catalog, error) {
	return defaultCatalog()
}

// LoadCatalog parses and validates the embedded template files
func LoadCatalog() (*Catalog, error) {
	c := &Catalog{engine: liquid.NewEngine()}

	if err := readYAML("templates/recommendations.yaml", &c.recommendations); err != nil {
		return nil, err
	}
	if err := readYAML("templates/efficiency.yaml", &c.efficiency); err != nil {
		return nil, err
	}
	if err := readYAML("templates/challenges.yaml", &c.challenges); err != nil {
		return nil, err
	}
	if err := readYAML("templates/outcomes.yaml", &c.outcomes); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func readYAML(name string, out any) error {
	data, err := templateFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

func (c *Catalog) validate() error {
	for _, cat := range models.Categories {
		if _, ok := c.recommendations.Categories[cat]; !ok {
			return fmt.Errorf("recommendation copy missing for category %s", cat)
		}
		for _, tier := range []models.PerformanceTier{models.TierBelowAverage, models.TierAverage, models.TierAboveAverage} {
			if _, ok := c.efficiency.Rules[tier][cat]; !ok {
				return fmt.Errorf("efficiency rule missing for %s/%s", tier, cat)
			}
		}
		profile, ok := c.outcomes.Categories[cat]
		if !ok || profile.DailyCapacity <= 0 || profile.SuccessRate <= 0 || profile.Approach == "" {
			return fmt.Errorf("outcome profile missing or incomplete for category %s", cat)
		}
	}
	if c.outcomes.LargeGoalTip == "" {
		return fmt.Errorf("outcome large_goal_tip is empty")
	}
	if c.efficiency.NoData == "" {
		return fmt.Errorf("efficiency no_data copy is empty")
	}

	total := 0
	for _, level := range models.Levels {
		if _, ok := c.recommendations.Levels[level]; !ok {
			return fmt.Errorf("recommendation framing missing for level %s", level)
		}
		pool := c.challenges[level]
		if len(pool) == 0 {
			return fmt.Errorf("challenge pool empty for level %s", level)
		}
		for _, tpl := range pool {
			if tpl.ID == "" || tpl.BaseTarget <= 0 || tpl.BaseReward <= 0 {
				return fmt.Errorf("challenge template %q in %s is incomplete", tpl.ID, level)
			}
		}
		total += len(pool)
	}
	if total < 12 {
		return fmt.Errorf("challenge pool has %d templates, need at least 12", total)
	}
	return nil
}

// ChallengePool returns the templates available at a level
func (c *Catalog) ChallengePool(level models.Level) []ChallengeTemplate {
	return c.challenges[level]
}

// render executes a Liquid template, caching the parsed form by key
func (c *Catalog) render(key, src string, bindings liquid.Bindings) (string, error) {
	if cached, ok := c.parsed.Load(key); ok {
		return cached.(*liquid.Template).RenderString(bindings)
	}

	tpl, err := c.engine.ParseString(src)
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", key, err)
	}
	c.parsed.Store(key, tpl)

	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render template %s: %w", key, err)
	}
	return out, nil
}
