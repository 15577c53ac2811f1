package corpus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairon-labs/kairon-backend/internal/domain"
)

func TestParseTrainingExamplePlain(t *testing.T) {
	text, entities, pairs, err := ParseTrainingExample("book a flight to paris")
	require.NoError(t, err)
	assert.Equal(t, "book a flight to paris", text)
	assert.Empty(t, entities)
	assert.Empty(t, pairs)
}

func TestParseTrainingExampleAnnotated(t *testing.T) {
	text, entities, pairs, err := ParseTrainingExample("book a flight to [paris](city) on [friday](day)")
	require.NoError(t, err)
	assert.Equal(t, "book a flight to paris on friday", text)
	require.Len(t, entities, 2)
	assert.Empty(t, pairs)

	for _, e := range entities {
		assert.Equal(t, e.Value, text[e.Start:e.End])
	}
	assert.Equal(t, "city", entities[0].Entity)
	assert.Equal(t, "paris", entities[0].Value)
	assert.Equal(t, "day", entities[1].Entity)
}

func TestParseTrainingExampleCanonicalValue(t *testing.T) {
	text, entities, pairs, err := ParseTrainingExample(`fly me to [NYC]{"entity":"city","value":"new york"}`)
	require.NoError(t, err)
	assert.Equal(t, "fly me to NYC", text)
	require.Len(t, entities, 1)
	// surface text stays in the entity so offsets keep addressing the text
	assert.Equal(t, "NYC", entities[0].Value)
	assert.Equal(t, "NYC", text[entities[0].Start:entities[0].End])
	require.Len(t, pairs, 1)
	assert.Equal(t, SynonymPair{Value: "new york", Synonym: "NYC"}, pairs[0])
}

func TestParseTrainingExampleMalformed(t *testing.T) {
	_, _, _, err := ParseTrainingExample("go to [paris](city")
	require.Error(t, err)

	_, _, _, err = ParseTrainingExample(`go to [paris]{"entity":}`)
	require.Error(t, err)

	_, _, _, err = ParseTrainingExample("go to [paris]()")
	require.Error(t, err)
}

func TestParseTrainingExampleLiteralBrackets(t *testing.T) {
	text, entities, _, err := ParseTrainingExample("press [enter] to continue")
	require.NoError(t, err)
	assert.Equal(t, "press [enter] to continue", text)
	assert.Empty(t, entities)
}

func TestValidateEntities(t *testing.T) {
	text := "fly to paris"
	ok := []domain.Entity{{Start: 7, End: 12, Value: "paris", Entity: "city"}}
	require.NoError(t, ValidateEntities(text, ok))

	bad := []domain.Entity{{Start: 7, End: 12, Value: "rome", Entity: "city"}}
	require.Error(t, ValidateEntities(text, bad))

	oob := []domain.Entity{{Start: 7, End: 50, Value: "paris", Entity: "city"}}
	require.Error(t, ValidateEntities(text, oob))
}
