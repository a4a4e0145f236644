package models

// RequestInfo is attached to log entries produced while serving a request.
type RequestInfo struct {
	Method   string `json:"method,omitempty"`
	Path     string `json:"path,omitempty"`
	ClientIP string `json:"client_ip,omitempty"`
}

// ErrorInfo is attached to log entries that report an error.
type ErrorInfo struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}
