// Package websocket defines the wire envelope shared by the widget and
// agent dashboard sockets. Both directions carry a single JSON object
// per frame: { "event": string, "data": object }.
package websocket

import "encoding/json"

// Message is the envelope for all WebSocket traffic.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates an envelope with the payload marshaled into Data.
func NewMessage(event string, payload interface{}) (*Message, error) {
	if payload == nil {
		return &Message{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{Event: event, Data: data}, nil
}

// Decode parses a raw frame into an envelope.
func Decode(raw []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Encode serializes the envelope for the wire.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// ParseData unmarshals the payload into the given struct.
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// ErrorData is the payload for error events such as auth:error.
type ErrorData struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// NewError creates an error envelope for the given event.
func NewError(event, code, message string) (*Message, error) {
	return NewMessage(event, ErrorData{Code: code, Message: message})
}
