package corpus

import (
	"encoding/json"
	"strings"

	"github.com/kairon-labs/kairon-backend/internal/domain"
	"github.com/kairon-labs/kairon-backend/internal/pkg/apperr"
)

// SynonymPair is a canonical-value mapping discovered inline in an example
// annotation; the caller registers it in the synonym table. Value is the
// canonical value, Synonym the surface text it appeared as.
type SynonymPair struct {
	Value   string
	Synonym string
}

// ParseTrainingExample extracts entity annotations from markdown-style
// example text. Two annotation forms are accepted:
//
//	[value](entity)
//	[value]{"entity":"name","value":"canonical"}
//
// Offsets in the returned entities refer to the cleaned text, so the
// text[start:end] == value invariant holds on what gets stored. The second
// form additionally yields a synonym pair mapping the surface text to the
// canonical value.
func ParseTrainingExample(raw string) (string, []domain.Entity, []SynonymPair, error) {
	var (
		clean    strings.Builder
		entities []domain.Entity
		pairs    []SynonymPair
	)
	for i := 0; i < len(raw); {
		if raw[i] != '[' {
			clean.WriteByte(raw[i])
			i++
			continue
		}
		closeIdx := strings.IndexByte(raw[i:], ']')
		if closeIdx < 0 {
			clean.WriteByte(raw[i])
			i++
			continue
		}
		value := raw[i+1 : i+closeIdx]
		rest := raw[i+closeIdx+1:]

		var entityName, mappedValue string
		var consumed int
		switch {
		case strings.HasPrefix(rest, "("):
			end := strings.IndexByte(rest, ')')
			if end < 0 {
				return "", nil, nil, apperr.Validation("Unterminated entity annotation in training example")
			}
			entityName = rest[1:end]
			consumed = end + 1
		case strings.HasPrefix(rest, "{"):
			end := strings.IndexByte(rest, '}')
			if end < 0 {
				return "", nil, nil, apperr.Validation("Unterminated entity annotation in training example")
			}
			var meta struct {
				Entity string `json:"entity"`
				Value  string `json:"value"`
			}
			if err := json.Unmarshal([]byte(rest[:end+1]), &meta); err != nil {
				return "", nil, nil, apperr.Validation("Malformed entity annotation in training example")
			}
			entityName = meta.Entity
			mappedValue = meta.Value
			consumed = end + 1
		default:
			// a bare bracket pair is literal text
			clean.WriteByte(raw[i])
			i++
			continue
		}
		if entityName == "" {
			return "", nil, nil, apperr.Validation("Entity annotation is missing the entity name")
		}
		start := clean.Len()
		clean.WriteString(value)
		entities = append(entities, domain.Entity{
			Start:  start,
			End:    start + len(value),
			Value:  value,
			Entity: entityName,
		})
		if mappedValue != "" && mappedValue != value {
			pairs = append(pairs, SynonymPair{Value: mappedValue, Synonym: value})
		}
		i += closeIdx + 1 + consumed
	}
	return clean.String(), entities, pairs, nil
}

// ValidateEntities enforces the offset invariant on externally supplied
// entities (upload path, edit path).
func ValidateEntities(text string, entities []domain.Entity) error {
	for _, e := range entities {
		if e.Start < 0 || e.End > len(text) || e.Start >= e.End {
			return apperr.Validation("Invalid entity offsets for entity " + e.Entity)
		}
		if text[e.Start:e.End] != e.Value {
			return apperr.Validation("Entity value does not match the annotated span for entity " + e.Entity)
		}
	}
	return nil
}
