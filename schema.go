package main

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
)

type pingMessage struct {
	Type string `json:"type" jsonschema:"required,enum=ping"`
}

type inputSnapshotMessage struct {
	Type    string               `json:"type" jsonschema:"required,enum=inputSnapshot"`
	Payload InputSnapshotPayload `json:"payload" jsonschema:"required"`
}

type startWithDefaultMessage struct {
	Type    string               `json:"type" jsonschema:"required,enum=startWithDefault"`
	Payload StartWithDefaultBody `json:"payload,omitempty"`
}

type startWithPromptMessage struct {
	Type    string                 `json:"type" jsonschema:"required,enum=startWithPrompt"`
	Payload StartWithPromptPayload `json:"payload" jsonschema:"required"`
}

// buildProtocolSchema describes every message a client may send
func buildProtocolSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	messages := []struct {
		title string
		v     interface{}
	}{
		{"ping", pingMessage{}},
		{"inputSnapshot", inputSnapshotMessage{}},
		{"startWithDefault", startWithDefaultMessage{}},
		{"startWithPrompt", startWithPromptMessage{}},
	}

	root := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Space ship arena client messages",
		Description: "Messages accepted on the /ws endpoint, as {\"type\", \"payload\"} JSON envelopes.",
	}
	for _, m := range messages {
		s := reflector.ReflectFromType(reflect.TypeOf(m.v))
		s.Version = ""
		s.Title = m.title
		root.OneOf = append(root.OneOf, s)
	}
	return root
}

// protocolSchemaJSON renders the client message schema
func protocolSchemaJSON() ([]byte, error) {
	return json.MarshalIndent(buildProtocolSchema(), "", "  ")
}
