package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/mentalmath/internal/catalog"
)

const bankSchemaURL = "https://mentalmath.local/schemas/question-bank.json"

// bankSchema describes a question bank file.
const bankSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["questions"],
  "properties": {
    "topics": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "title": {"type": "string"},
          "subtopics": {"type": "array", "items": {"type": "string"}},
          "tips": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "topic", "difficulty", "estimatedTime"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "topic": {"type": "string", "minLength": 1},
          "subtopic": {"type": "string"},
          "difficulty": {"type": "integer", "minimum": 1, "maximum": 5},
          "estimatedTime": {"type": "number", "exclusiveMinimum": 0},
          "hints": {"type": "array", "items": {"type": "string"}},
          "strategyTip": {"type": "string"},
          "prompt": {"type": "string"},
          "answer": {"type": "string"}
        }
      }
    }
  }
}`

// Bank is the on-disk question bank format.
type Bank struct {
	Topics    []catalog.Topic `json:"topics,omitempty"`
	Questions []Question      `json:"questions"`
}

// ImportResult counts what an import wrote.
type ImportResult struct {
	Topics    int
	Questions int
}

// ImportFile reads a question bank from path and imports it.
func (s *Store) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("open bank: %w", err)
	}
	defer f.Close()
	return s.Import(ctx, f)
}

// Import validates a question bank document against the bank schema and
// upserts its topics and questions.
func (s *Store) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read bank: %w", err)
	}
	bank, err := ParseBank(raw)
	if err != nil {
		return ImportResult{}, err
	}
	if err := s.UpsertTopics(ctx, bank.Topics); err != nil {
		return ImportResult{}, err
	}
	if err := s.UpsertQuestions(ctx, bank.Questions); err != nil {
		return ImportResult{}, err
	}
	return ImportResult{Topics: len(bank.Topics), Questions: len(bank.Questions)}, nil
}

// ParseBank validates raw against the bank schema and decodes it.
func ParseBank(raw []byte) (*Bank, error) {
	if err := validateBank(raw); err != nil {
		return nil, err
	}
	var bank Bank
	if err := json.Unmarshal(raw, &bank); err != nil {
		return nil, fmt.Errorf("decode bank: %w", err)
	}
	return &bank, nil
}

func validateBank(raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(bankSchema))
	if err != nil {
		return fmt.Errorf("parse bank schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(bankSchemaURL, doc); err != nil {
		return fmt.Errorf("add bank schema: %w", err)
	}
	sch, err := c.Compile(bankSchemaURL)
	if err != nil {
		return fmt.Errorf("compile bank schema: %w", err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode bank: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("invalid bank: %w", err)
	}
	return nil
}
