package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrSchemaMismatch は応答 JSON が期待する形でないとき。
var ErrSchemaMismatch = errors.New("response does not match schema")

const (
	schemaItem     = "https://todo-app.local/schema/item.json"
	schemaItemList = "https://todo-app.local/schema/item-list.json"
)

const itemSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "title", "isCompleted"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "title": {"type": "string"},
    "isCompleted": {"type": "boolean"}
  },
  "additionalProperties": false
}`

const itemListSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {"$ref": "item.json"}
}`

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaItem, strings.NewReader(itemSchemaJSON)); err != nil {
			schemasErr = fmt.Errorf("add item schema: %w", err)
			return
		}
		if err := compiler.AddResource(schemaItemList, strings.NewReader(itemListSchemaJSON)); err != nil {
			schemasErr = fmt.Errorf("add item list schema: %w", err)
			return
		}

		out := make(map[string]*jsonschema.Schema, 2)
		for _, url := range []string{schemaItem, schemaItemList} {
			s, err := compiler.Compile(url)
			if err != nil {
				schemasErr = fmt.Errorf("compile schema %s: %w", url, err)
				return
			}
			out[url] = s
		}
		schemas = out
	})
	return schemas, schemasErr
}

func validateBody(schemaURL string, body []byte) error {
	all, err := loadSchemas()
	if err != nil {
		return err
	}
	s, ok := all[schemaURL]
	if !ok {
		return fmt.Errorf("unknown schema %s", schemaURL)
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("%w: invalid json: %v", ErrSchemaMismatch, err)
	}

	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("%w: %s", ErrSchemaMismatch, firstLeaf(ve))
		}
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}

// firstLeaf は Causes を辿って最初の末端エラーを "location: message" にする。
func firstLeaf(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return loc + ": " + ve.Message
}
