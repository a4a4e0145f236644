package models

// Content is one role-attributed chunk of a generation request.
type Content struct {
	Role SpeakerRole `json:"role"`
	Text string      `json:"text"`
}

// GenerateRequest is a provider-agnostic text generation request.
type GenerateRequest struct {
	System  string    `json:"system,omitempty"`
	Content []Content `json:"content"`
}

// GenerateResponse is the text returned by a provider.
type GenerateResponse struct {
	Text string `json:"text"`
}
