package util

// Envelope is the generic JSON object handlers respond with when no typed
// response struct exists.
type Envelope map[string]any

// Error wraps a message in the `{"error": ...}` shape every failure response
// uses.
func Error(message string) Envelope {
	return Envelope{"error": message}
}

// Data wraps a single value under its payload key, e.g.
// `{"profile_picture": url}`.
func Data(key string, value any) Envelope {
	return Envelope{key: value}
}
