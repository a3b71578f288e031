package analytics

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/JonnyWalker81/ecotrack/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeGenerator_IsDeterministic(t *testing.T) {
	gen := NewChallengeGenerator(testCatalog(t))
	in := ChallengeInput{UserID: "u42", PeriodKey: "2024-W07", Level: models.LevelNovice}

	first, err := gen.Generate(in)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		again, err := gen.Generate(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, models.GeneratedByRuleBased, first.GeneratedBy)
	assert.Equal(t, time.Date(2024, 2, 19, 0, 0, 0, 0, time.UTC), first.ExpiresAt)
}

func TestChallengeGenerator_VariesAcrossPeriods(t *testing.T) {
	gen := NewChallengeGenerator(testCatalog(t))

	seen := make(map[string]bool)
	for week := 1; week <= 52; week++ {
		draft, err := gen.Generate(ChallengeInput{
			UserID:    "u42",
			PeriodKey: fmt.Sprintf("2024-W%02d", week),
			Level:     models.LevelBeginner,
		})
		require.NoError(t, err)
		seen[draft.TemplateID] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestChallengeGenerator_ScalesFromBaseTable(t *testing.T) {
	catalog := testCatalog(t)
	gen := NewChallengeGenerator(catalog)

	for _, level := range models.Levels {
		byID := make(map[string]ChallengeTemplate)
		for _, tpl := range catalog.ChallengePool(level) {
			byID[tpl.ID] = tpl
		}

		for i := 0; i < 40; i++ {
			draft, err := gen.Generate(ChallengeInput{
				UserID:    fmt.Sprintf("user-%d", i),
				PeriodKey: "2025-W10",
				Level:     level,
			})
			require.NoError(t, err)

			tpl, ok := byID[draft.TemplateID]
			require.True(t, ok, "template %s not in %s pool", draft.TemplateID, level)
			assert.Equal(t, level, draft.Level)
			assert.GreaterOrEqual(t, draft.Target, tpl.BaseTarget)
			assert.LessOrEqual(t, draft.Target, int(math.Round(float64(tpl.BaseTarget)*1.3)))

			wantReward := int(math.Round(float64(tpl.BaseReward) * float64(draft.Target) / float64(tpl.BaseTarget)))
			assert.Equal(t, wantReward, draft.RewardPoints)
			assert.Contains(t, draft.Description, fmt.Sprint(draft.Target))
		}
	}
}

func TestChallengeGenerator_AppendsFocusCategory(t *testing.T) {
	gen := NewChallengeGenerator(testCatalog(t))

	draft, err := gen.Generate(ChallengeInput{
		UserID:    "u1",
		PeriodKey: "2024-W07",
		Level:     models.LevelBeginner,
		RecentFrequencies: map[models.Category]int{
			models.CategoryCleanup:      3,
			models.CategoryEnergySaving: 3,
		},
	})
	require.NoError(t, err)
	assert.Contains(t, draft.Description, "Focus on cleanup activities!")
}

func TestChallengeGenerator_RejectsBadPeriod(t *testing.T) {
	gen := NewChallengeGenerator(testCatalog(t))

	_, err := gen.Generate(ChallengeInput{UserID: "u1", PeriodKey: "week seven"})
	assert.Error(t, err)
}

func TestSeed_DependsOnBothParts(t *testing.T) {
	assert.Equal(t, Seed("u42", "2024-W07"), Seed("u42", "2024-W07"))
	assert.NotEqual(t, Seed("u42", "2024-W07"), Seed("u42", "2024-W08"))
	assert.NotEqual(t, Seed("u4", "22024-W07"), Seed("u42", "2024-W07"))
}

func TestParseChallengeCopy(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    ChallengeCopy
		wantErr bool
	}{
		{
			name:    "plain json",
			content: `{"title": "Green Week", "description": "Recycle 5 kg."}`,
			want:    ChallengeCopy{Title: "Green Week", Description: "Recycle 5 kg."},
		},
		{
			name:    "fenced json",
			content: "```json\n{\"title\": \" Green Week \", \"description\": \"Recycle 5 kg.\"}\n```",
			want:    ChallengeCopy{Title: "Green Week", Description: "Recycle 5 kg."},
		},
		{name: "prose", content: "Sure! Here is a challenge.", wantErr: true},
		{name: "missing description", content: `{"title": "Green Week"}`, wantErr: true},
		{name: "empty", content: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChallengeCopy(tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedCopy)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
