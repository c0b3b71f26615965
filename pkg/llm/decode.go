package llm

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const chatRequestSchemaJSON = `{
  "type": "object",
  "required": ["messages"],
  "properties": {
    "messages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["role", "content"],
        "properties": {
          "role": {"type": "string", "enum": ["user", "assistant"]},
          "content": {"type": "string"}
        }
      }
    },
    "text": {"type": "string"}
  }
}`

var chatRequestSchema = mustCompileSchema(chatRequestSchemaJSON)

func mustCompileSchema(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic("invalid chat request schema: " + err.Error())
	}
	return s
}

// DecodeChatRequest validates body against the chat request schema and decodes
// it. Any shape mismatch is reported as MalformedInput.
func DecodeChatRequest(body []byte) (*ChatRequest, error) {
	if len(body) == 0 || !json.Valid(body) {
		return nil, MalformedInput("request body must be a JSON object", nil)
	}

	result, err := chatRequestSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, MalformedInput("request body could not be validated", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, MalformedInput("invalid request body: "+strings.Join(details, "; "), nil)
	}

	var req ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, MalformedInput("request body could not be decoded", err)
	}

	return &req, nil
}
