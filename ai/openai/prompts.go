package openai

import (
	"fmt"
	"strings"

	"github.com/santhosh0997/Multimodal-Rag-System/ai"
)

const ingestionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "type": {"type": "string"},
          "attributes": {
            "type": "object",
            "additionalProperties": {"type": "string"}
          }
        },
        "required": ["name", "type"],
        "additionalProperties": false
      }
    },
    "relationships": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "source": {"type": "string"},
          "relation": {"type": "string"},
          "target": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        },
        "required": ["source", "relation", "target", "confidence"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities", "relationships"],
  "additionalProperties": false
}`

const ingestionPromptTemplate = `Extract the named entities and the relationships between them from the given text and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Entity names must be copied exactly as they appear in the text.
- Type field must match exactly one of the listed values: %s.
- Attributes are optional. Use them only for facts about one entity that are not relationships,
  such as {"founded":"1999"} or {"role":"chief executive"}. Keys are lower snake case; values are short strings.
- Relationship source and target must be names from the entities list.
- Relation is a short verb phrase in lower case, for example "acquired", "works_for", "located_in".
- Confidence is a number from 0 to 1 describing how explicitly the text states the relationship.
- Include only facts that are stated or clearly implied by the text. Do not hallucinate.
- If nothing can be identified, return {"entities": [], "relationships": []}.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.

Example:
Input: "Acme Corp acquired Zenith Inc in 2020."
Output:
{
  "entities": [
    {"name":"Acme Corp","type":"organization"},
    {"name":"Zenith Inc","type":"organization"},
    {"name":"2020","type":"date"}
  ],
  "relationships": [
    {"source":"Acme Corp","relation":"acquired","target":"Zenith Inc","confidence":0.95}
  ]
}`

const queryResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "type": {"type": "string"}
        },
        "required": ["name", "type"],
        "additionalProperties": false
      }
    }
  },
  "required": ["entities"],
  "additionalProperties": false
}`

const queryPromptTemplate = `List the named entities a question refers to and return them as JSON.

Output ONLY valid JSON which complies with the schema given below, with no text outside the object:

%s

Rules:
- Entity names must be copied exactly as they appear in the question.
- Type field must match exactly one of the listed values: %s.
- Do not answer the question.
- If the question names no entities, return {"entities": []}.

Example:
Input: "Who acquired Zenith?"
Output:
{"entities":[{"name":"Zenith","type":"organization"}]}`

// buildSystemPrompt creates the system prompt for the mode with entity types embedded.
func buildSystemPrompt(mode ai.Mode) string {
	types := strings.Join(ai.EntityTypeNames(), ", ")
	if mode == ai.ModeQuery {
		return fmt.Sprintf(queryPromptTemplate, queryResponseSchema, types)
	}
	return fmt.Sprintf(ingestionPromptTemplate, ingestionResponseSchema, types)
}
