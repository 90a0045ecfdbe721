package agent

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError lists every schema violation found in a model response.
type ValidationError struct {
	Agent  string
	Errors []FieldError
}

type FieldError struct {
	Field   string
	Message string
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: response failed schema validation:", ve.Agent)
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, " %d. %s: %s;", i+1, err.Field, err.Message)
	}
	return strings.TrimSuffix(sb.String(), ";")
}

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("agent: invalid schema: %v", err))
	}
	return s
}

func validate(agent string, schema *gojsonschema.Schema, doc string) error {
	result, err := schema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return fmt.Errorf("%s: validate response: %w", agent, err)
	}
	if result.Valid() {
		return nil
	}

	ve := &ValidationError{Agent: agent, Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return ve
}

var (
	profileSchema = mustSchema(`{
  "type": "object",
  "required": ["contact", "skills"],
  "properties": {
    "contact": {"type": "object", "properties": {"name": {"type": "string"}}},
    "summary": {"type": "string"},
    "skills": {"type": "array", "items": {"type": "string"}},
    "experience": {"type": "array", "items": {"type": "object", "required": ["title"]}},
    "education": {"type": "array", "items": {"type": "object"}}
  }
}`)

	scoreSchema = mustSchema(`{
  "type": "object",
  "required": ["overall", "sections"],
  "properties": {
    "overall": {"type": ["number", "string"]},
    "sections": {"type": "array", "items": {"type": "object", "required": ["name", "score"],
      "properties": {"name": {"type": "string"}, "score": {"type": ["number", "string"]}}}},
    "strengths": {"type": "array", "items": {"type": "string"}},
    "improvements": {"type": "array", "items": {"type": "string"}},
    "ats": {"type": "object", "properties": {"score": {"type": ["number", "string"]}}}
  }
}`)

	skillGapSchema = mustSchema(`{
  "type": "object",
  "required": ["match_score", "missing_skills"],
  "properties": {
    "match_score": {"type": ["number", "string"]},
    "matching_skills": {"type": "array", "items": {"type": "string"}},
    "missing_skills": {"type": "array", "items": {"type": "object", "required": ["skill"],
      "properties": {"skill": {"type": "string"}, "priority": {"type": "string"}}}}
  }
}`)

	personalitySchema = mustSchema(`{
  "type": "object",
  "required": ["openness", "conscientiousness", "extraversion", "agreeableness", "neuroticism"],
  "properties": {
    "openness": {"type": ["number", "string"]},
    "conscientiousness": {"type": ["number", "string"]},
    "extraversion": {"type": ["number", "string"]},
    "agreeableness": {"type": ["number", "string"]},
    "neuroticism": {"type": ["number", "string"]},
    "summary": {"type": "string"}
  }
}`)

	relevanceSchema = mustSchema(`{
  "type": "object",
  "required": ["scores"],
  "properties": {
    "scores": {"type": "array", "items": {"type": "object", "required": ["index", "score"],
      "properties": {"index": {"type": "integer"}, "score": {"type": "number"}}}}
  }
}`)
)
