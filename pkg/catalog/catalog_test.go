package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/backsoul/spotit/pkg/models"
)

const twoQuestions = `[
  {"id":"s1","phase":"spot","type":"multiple_choice_score","level":1,"prompt":"Prompt one",
   "options":[{"id":"a","text":"A","score":1},{"id":"b","text":"B","score":3}]},
  {"id":"e1","phase":"end","type":"multiple_choice_action","prompt":"Prompt two",
   "options":[{"id":"a","text":"A","score":0},{"id":"b","text":"B","score":2}]}
]`

func TestParseAcceptsBareArrayAndWrapper(t *testing.T) {
	bare, err := Parse([]byte(twoQuestions))
	require.NoError(t, err)
	require.Len(t, bare, 2)

	wrapped, err := Parse([]byte(`{"questions":` + twoQuestions + `,"metadata":{"version":"1"}}`))
	require.NoError(t, err)
	assert.Equal(t, bare, wrapped)
	assert.Equal(t, models.PhaseSpot, wrapped[0].Phase)
	assert.True(t, wrapped[0].HasLevel(1))
	assert.Equal(t, 3, wrapped[0].MaxScore())
}

func TestParseRejectsUnknownShapes(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"string":         `"questions"`,
		"no questions":   `{"items":[]}`,
		"questions null": `{"questions":null}`,
		"not an array":   `{"questions":{"id":"x"}}`,
		"broken json":    `[{"id":`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrCatalogFormat))
			var cfe *CatalogFormatError
			assert.True(t, errors.As(err, &cfe))
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	four := 4
	lvl := models.Level(7)
	questions := []models.Question{
		{ID: "q1", Phase: "spot", Type: models.TypeMultipleChoiceScore, Prompt: "p"},
		{ID: "q1", Phase: "middle", Type: models.TypeInformationGuide, Prompt: "p", Level: &lvl},
		{ID: "q3", Phase: "end", Type: models.TypeDownloadResource, Prompt: "p",
			Options: []models.Option{{ID: "a", Text: "A", Score: &four}, {ID: "a", Text: "B"}}},
	}

	err := Validate(questions)
	var cfe *CatalogFormatError
	require.True(t, errors.As(err, &cfe))
	assert.Contains(t, cfe.Problems, "question q1: multiple_choice_score requires options")
	assert.Contains(t, cfe.Problems, "question q1: duplicate id")
	assert.Contains(t, cfe.Problems, `question q1: unknown phase "middle"`)
	assert.Contains(t, cfe.Problems, "question q1: level 7 out of range")
	assert.Contains(t, cfe.Problems, "question q1: information_guide requires step_by_step_guide")
	assert.Contains(t, cfe.Problems, "question q3: download_resource must not carry options")
	assert.Contains(t, cfe.Problems, "question q3: duplicate option id a")
	assert.Contains(t, cfe.Problems, "question q3: option a score 4 out of range 0-3")
}

func TestBundledCatalogIsValid(t *testing.T) {
	questions, err := Parse(bundled)
	require.NoError(t, err)

	summary := Summarize(questions)
	assert.Greater(t, summary.ByPhase[models.PhaseSpot], 0)
	assert.Greater(t, summary.ByPhase[models.PhaseEnd], 0)
	for l := models.MinLevel; l <= models.MaxLevel; l++ {
		assert.Greater(t, summary.ByLevel[l], 0, "level %d", l)
	}

	for _, q := range questions {
		assert.Greater(t, len(q.Prompt), 10, q.ID)
		for _, o := range q.Options {
			assert.Greater(t, len(o.Text), 3, o.ID)
			if q.Type == models.TypeMultipleChoiceScore {
				assert.Greater(t, len(o.Feedback), 10, o.ID)
			} else {
				assert.Greater(t, len(o.ConsequenceFeedback), 10, o.ID)
			}
		}
	}
}

func TestFilter(t *testing.T) {
	questions, err := Parse(bundled)
	require.NoError(t, err)

	one := models.Level(1)
	four := models.Level(4)

	spot := Filter(questions, models.PhaseSpot, nil)
	level1 := Filter(questions, models.PhaseSpot, &one)
	end := Filter(questions, models.PhaseEnd, &one)

	assert.NotEmpty(t, level1)
	assert.Less(t, len(level1), len(spot))
	for _, q := range level1 {
		assert.True(t, q.HasLevel(1))
	}
	assert.Equal(t, Filter(questions, models.PhaseEnd, nil), end, "level is ignored outside spot")
	assert.Empty(t, Filter(questions, models.PhaseSpot, &four))
}

func TestLoaderLoadsOnce(t *testing.T) {
	calls := 0
	source := func(context.Context) ([]byte, error) {
		calls++
		return []byte(twoQuestions), nil
	}
	l := NewLoader(source, zap.NewNop())
	assert.False(t, l.Loaded())

	for i := 0; i < 3; i++ {
		qs, err := l.Load(context.Background())
		require.NoError(t, err)
		assert.Len(t, qs, 2)
	}
	assert.Equal(t, 1, calls)
	assert.True(t, l.Loaded())
}

func TestLoaderRetriesAfterFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nope":true}`), 0o644))

	l := NewLoader(File(path), zap.NewNop())
	_, err := l.Load(context.Background())
	require.ErrorIs(t, err, ErrCatalogFormat)
	assert.False(t, l.Loaded())

	require.NoError(t, os.WriteFile(path, []byte(twoQuestions), 0o644))
	qs, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}
