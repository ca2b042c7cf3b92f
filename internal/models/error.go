package models

// RequestError is the body of every non-2xx JSON response.
type RequestError struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
}
