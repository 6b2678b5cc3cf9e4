package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// updateSchema describes a taskUpdate payload: one full task record.
const updateSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["id", "title", "status", "user"],
	"properties": {
		"id": {"type": "integer"},
		"title": {"type": "string"},
		"status": {"enum": ["Todo", "In-Progress", "Done"]},
		"user": {"type": "string"}
	}
}`

var compiledUpdateSchema = jsonschema.MustCompileString("taskUpdate.json", updateSchema)

// Validate checks an update against the current tasks. It reports
// ErrInvalidStatus for statuses outside the board columns and ErrUnknownTask
// when no current task carries t.ID.
func Validate(t Task, current []Task) error {
	if !t.Status.Valid() {
		return fmt.Errorf("task %d: %w %q", t.ID, ErrInvalidStatus, t.Status)
	}
	for _, c := range current {
		if c.ID == t.ID {
			return nil
		}
	}
	return fmt.Errorf("task %d: %w", t.ID, ErrUnknownTask)
}

// ParseUpdate decodes and schema-checks a raw taskUpdate payload.
func ParseUpdate(raw []byte) (Task, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return FromDocument(doc)
}

// FromDocument schema-checks a decoded JSON document and converts it to a
// Task. Numbers in doc should be json.Number or float64.
func FromDocument(doc any) (Task, error) {
	if err := compiledUpdateSchema.Validate(doc); err != nil {
		return Task{}, fmt.Errorf("%w: %s", ErrInvalidPayload, schemaMessage(err))
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return t, nil
}

// schemaMessage flattens a validation error into "path: message" leaves.
func schemaMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	var msgs []string
	collectSchemaErrors(ve, &msgs)
	return strings.Join(msgs, "; ")
}

func collectSchemaErrors(err *jsonschema.ValidationError, msgs *[]string) {
	if len(err.Causes) == 0 {
		loc := strings.TrimPrefix(err.InstanceLocation, "/")
		if loc == "" {
			*msgs = append(*msgs, err.Message)
			return
		}
		*msgs = append(*msgs, loc+": "+err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, msgs)
	}
}
