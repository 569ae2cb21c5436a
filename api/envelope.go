package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope is the one response shape the backend uses:
//
//	{"isSuccessful": true, "payload": ..., "remark": "..."}
//
// Older endpoints spell the flag "success" and the text "message".
type Envelope struct {
	IsSuccessful *bool           `json:"isSuccessful,omitempty"`
	Success      *bool           `json:"success,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	Remark       string          `json:"remark,omitempty"`
	Message      string          `json:"message,omitempty"`
}

func (e Envelope) OK() bool {
	return (e.IsSuccessful != nil && *e.IsSuccessful) || (e.Success != nil && *e.Success)
}

func (e Envelope) Text() string {
	if e.Remark != "" {
		return e.Remark
	}
	return e.Message
}

func (e Envelope) hasFlag() bool {
	return e.IsSuccessful != nil || e.Success != nil
}

func (e Envelope) hasPayload() bool {
	p := bytes.TrimSpace(e.Payload)
	return len(p) > 0 && !bytes.Equal(p, []byte("null"))
}

func decodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !env.hasFlag() {
		return Envelope{}, fmt.Errorf("%w: missing isSuccessful/success flag", ErrMalformedResponse)
	}
	return env, nil
}
