package schema

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/ellaouzi/fos-app-sub002/internal/common/errors"
	"github.com/ellaouzi/fos-app-sub002/internal/common/logger"
	"github.com/ellaouzi/fos-app-sub002/internal/common/validation"
)

// structure is checked before decoding so that wrong JSON kinds are reported
// with a field path. Field types are not enumerated here; an unknown type is a
// render-time failure.
const structure = `{
  "type": "object",
  "required": ["key", "fields"],
  "properties": {
    "key": {"type": "string", "minLength": 1},
    "title": {"type": "string"},
    "fields": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["name", "type"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "label": {"type": "string"},
          "type": {"type": "string", "minLength": 1},
          "placeholder": {"type": ["string", "null"]},
          "required": {"type": "boolean"},
          "order": {"type": "integer", "minimum": 0},
          "options": {
            "type": ["array", "null"],
            "items": {
              "type": "object",
              "required": ["value"],
              "properties": {
                "value": {"type": "string"},
                "label": {"type": "string"}
              }
            }
          },
          "condition": {
            "type": "object",
            "required": ["field", "operator"],
            "properties": {
              "field": {"type": "string"},
              "operator": {"enum": ["eq", "ne"]},
              "value": {"type": "string"}
            }
          },
          "maxFiles": {"type": "integer", "minimum": 1},
          "acceptedFileTypes": {"type": "string"}
        }
      }
    }
  }
}`

var structureValidator = validation.MustCompile(structure)

// Parse checks text against the schema document structure and decodes it.
// Every failure carries SCHEMA_MALFORMED.
func Parse(text string) (*FormSchema, error) {
	res, err := structureValidator.ValidateJSON([]byte(text))
	if err != nil {
		return nil, apperrors.NewSchemaMalformedError("", err)
	}
	if !res.Valid {
		return nil, apperrors.NewSchemaMalformedError("", res)
	}
	return Deserialize(text)
}

// Loader resolves schema keys through a Source.
type Loader struct {
	source Source
	logger logger.Logger
}

func NewLoader(source Source, log logger.Logger) *Loader {
	return &Loader{
		source: source,
		logger: log.WithFields(map[string]interface{}{"component": "schema-loader"}),
	}
}

// Load returns SCHEMA_NOT_FOUND when the source has no text for key and
// SCHEMA_MALFORMED when the text cannot be used.
func (l *Loader) Load(ctx context.Context, key string) (*FormSchema, error) {
	text, err := l.source.LoadSchemaText(ctx, key)
	if errors.Is(err, ErrSchemaTextNotFound) {
		l.logger.Warn("schema not found", map[string]interface{}{"schemaKey": key})
		return nil, apperrors.NewSchemaNotFoundError(key)
	}
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", key, err)
	}

	s, err := Parse(text)
	if err != nil {
		l.logger.Error("schema malformed", map[string]interface{}{
			"schemaKey": key,
			"error":     err.Error(),
		})
		return nil, apperrors.NewSchemaMalformedError(key, err)
	}
	if s.Key != key {
		return nil, apperrors.NewSchemaMalformedError(key,
			fmt.Errorf("text declares key %q", s.Key))
	}
	return s, nil
}

// Save validates s and stores its indented text under s.Key.
func (l *Loader) Save(ctx context.Context, s *FormSchema) error {
	if err := s.Validate(); err != nil {
		return apperrors.NewSchemaMalformedError(s.Key, err)
	}
	text, err := SerializeIndent(s)
	if err != nil {
		return err
	}
	if err := l.source.SaveSchemaText(ctx, s.Key, text); err != nil {
		return fmt.Errorf("save schema %s: %w", s.Key, err)
	}
	l.logger.Info("schema saved", map[string]interface{}{
		"schemaKey": s.Key,
		"fields":    len(s.Fields),
	})
	return nil
}
