package analytics

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/osteele/liquid"
)

const (
	// Seeded multipliers fall in [minScale, minScale+scaleSpread)
	minScale    = 1.0
	scaleSpread = 0.3

	// Second PCG word, fixed so that the stream depends only on the seed
	pcgStream = 0x9e3779b97f4a7c15

	maxTitleChars       = 120
	maxDescriptionChars = 600
)

// ErrMalformedCopy is returned when generated challenge copy cannot be used
var ErrMalformedCopy = errors.New("malformed challenge copy")

// ChallengeInput is the per-user context for a weekly challenge
type ChallengeInput struct {
	UserID            string
	PeriodKey         string
	Level             models.Level
	RecentFrequencies map[models.Category]int
}

// ChallengeGenerator picks and scales a template from the level's pool.
// The choice depends only on (user, period) so repeated calls agree.
type ChallengeGenerator struct {
	catalog *Catalog
}

// NewChallengeGenerator creates a generator over catalog's template pools
func NewChallengeGenerator(catalog *Catalog) *ChallengeGenerator {
	return &ChallengeGenerator{catalog: catalog}
}

// Seed derives the PRNG seed for a (user, period) pair
func Seed(userID, periodKey string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(userID))
	h.Write([]byte("|"))
	h.Write([]byte(periodKey))
	return h.Sum64()
}

// Generate returns the deterministic challenge draft for in
func (g *ChallengeGenerator) Generate(in ChallengeInput) (models.ChallengeDraft, error) {
	weekStart, err := ParsePeriodKey(in.PeriodKey)
	if err != nil {
		return models.ChallengeDraft{}, err
	}

	level := in.Level
	pool := g.catalog.ChallengePool(level)
	if len(pool) == 0 {
		level = models.LevelBeginner
		pool = g.catalog.ChallengePool(level)
	}

	seed := Seed(in.UserID, in.PeriodKey)
	rng := rand.New(rand.NewPCG(seed, seed^pcgStream))
	tpl := pool[rng.IntN(len(pool))]
	multiplier := minScale + scaleSpread*rng.Float64()

	target := max(1, int(math.Round(float64(tpl.BaseTarget)*multiplier)))
	reward := int(math.Round(float64(tpl.BaseReward) * float64(target) / float64(tpl.BaseTarget)))

	bindings := liquid.Bindings{"target": target, "reward": reward, "metric": tpl.TargetMetric}
	description, err := g.catalog.render("challenge/"+tpl.ID, tpl.Description, bindings)
	if err != nil {
		return models.ChallengeDraft{}, err
	}
	if focus, ok := FocusCategory(in.RecentFrequencies); ok {
		description += fmt.Sprintf(" Focus on %s activities!", focus.Label())
	}

	return models.ChallengeDraft{
		PeriodKey:    in.PeriodKey,
		Level:        level,
		TemplateID:   tpl.ID,
		Target:       target,
		TargetMetric: tpl.TargetMetric,
		RewardPoints: reward,
		Title:        tpl.Title,
		Description:  description,
		GeneratedBy:  models.GeneratedByRuleBased,
		ExpiresAt:    weekStart.AddDate(0, 0, 7),
	}, nil
}

// FocusCategory returns the user's most frequent recent category. Ties go
// to the earlier category.
func FocusCategory(freq map[models.Category]int) (models.Category, bool) {
	var (
		best  models.Category
		count int
	)
	for _, cat := range models.Categories {
		if freq[cat] > count {
			best, count = cat, freq[cat]
		}
	}
	return best, count > 0
}

// ChallengePrompt builds the bounded enrichment prompt for draft
func ChallengePrompt(draft models.ChallengeDraft) string {
	var b strings.Builder
	b.WriteString("You write short, upbeat weekly sustainability challenges for university students. ")
	b.WriteString("Reword the challenge below. Keep the same goal, numbers and metric. ")
	b.WriteString(`Respond with JSON only: {"title": "...", "description": "..."}` + "\n")
	fmt.Fprintf(&b, "Level: %s\n", draft.Level)
	fmt.Fprintf(&b, "Target: %d %s\n", draft.Target, draft.TargetMetric)
	fmt.Fprintf(&b, "Reward: %d points\n", draft.RewardPoints)
	fmt.Fprintf(&b, "Title: %s\n", draft.Title)
	fmt.Fprintf(&b, "Description: %s", draft.Description)
	return truncatePrompt(b.String())
}

// ChallengeCopy is the reworded text of a challenge
type ChallengeCopy struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ParseChallengeCopy extracts title and description from a generated
// response, tolerating markdown code fences around the JSON
func ParseChallengeCopy(content string) (ChallengeCopy, error) {
	var out ChallengeCopy
	if err := json.Unmarshal([]byte(cleanJSONResponse(content)), &out); err != nil {
		return ChallengeCopy{}, fmt.Errorf("%w: %v", ErrMalformedCopy, err)
	}
	out.Title = strings.TrimSpace(out.Title)
	out.Description = strings.TrimSpace(out.Description)

	switch {
	case out.Title == "" || out.Description == "":
		return ChallengeCopy{}, fmt.Errorf("%w: missing title or description", ErrMalformedCopy)
	case len(out.Title) > maxTitleChars || len(out.Description) > maxDescriptionChars:
		return ChallengeCopy{}, fmt.Errorf("%w: copy too long", ErrMalformedCopy)
	}
	return out, nil
}

// cleanJSONResponse strips markdown code fences from a model response
func cleanJSONResponse(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
