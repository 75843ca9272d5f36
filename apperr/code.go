package apperr

import "net/http"

// Code identifies a failure class
type Code int

// Code ranges:
// 1000-1099: client errors
// 1100-1199: internal faults
const (
	InvalidParams       Code = 1000
	PayloadTooLarge     Code = 1001
	UnsupportedLanguage Code = 1002
	Unauthorized        Code = 1003

	Internal         Code = 1100
	ToolchainMissing Code = 1101
)

var codeMessages = map[Code]string{
	InvalidParams:       "invalid request parameters",
	PayloadTooLarge:     "source code exceeds the maximum allowed size",
	UnsupportedLanguage: "unsupported language",
	Unauthorized:        "missing API key",
	Internal:            "internal server error",
	ToolchainMissing:    "internal server error",
}

var codeStatus = map[Code]int{
	InvalidParams:       http.StatusBadRequest,
	PayloadTooLarge:     http.StatusRequestEntityTooLarge,
	UnsupportedLanguage: http.StatusBadRequest,
	Unauthorized:        http.StatusUnauthorized,
	Internal:            http.StatusInternalServerError,
	ToolchainMissing:    http.StatusInternalServerError,
}

// Message returns the default, caller-safe message for the code
func (c Code) Message() string {
	if msg, ok := codeMessages[c]; ok {
		return msg
	}
	return codeMessages[Internal]
}

// HTTPStatus maps the code onto a response status
func (c Code) HTTPStatus() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsClient reports whether the code is a 4xx client error
func (c Code) IsClient() bool {
	return c >= 1000 && c < 1100
}
