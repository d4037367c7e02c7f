package core

import "encoding/json"

// TaskEnvelope is the unit transported on the queue: an arbitrary task
// payload plus the token that authorised it. The wire format is a JSON
// object {"task": <object>, "token": "<signed-token>"}; envelopes are never
// mutated after publish.
type TaskEnvelope struct {
	Task  map[string]any `json:"task"`
	Token string         `json:"token"`
}

// EncodeEnvelope serializes an envelope for the wire.
func EncodeEnvelope(task map[string]any, token string) (string, error) {
	b, err := json.Marshal(TaskEnvelope{Task: task, Token: token})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeEnvelope parses a wire payload back into an envelope.
func DecodeEnvelope(raw string) (TaskEnvelope, error) {
	var env TaskEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return TaskEnvelope{}, err
	}
	return env, nil
}
