package http

// ErrorResponse is the body of every non-2xx gateway reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"` // upstream status, when there was one
}
