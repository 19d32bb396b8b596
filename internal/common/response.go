package common

import (
	"encoding/json"
	"net/http"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Envelope is the success body: the payload under "data" and any non-blocking notices
// under "warnings".
type Envelope struct {
	Data     any       `json:"data"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// ErrorBody is the payload under "error" in every failed response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Warning is a non-blocking notice, such as a clamped bill discount.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON encodes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Data writes a 200 envelope around payload.
func Data(w http.ResponseWriter, payload any, warnings ...Warning) {
	JSON(w, http.StatusOK, Envelope{Data: payload, Warnings: warnings})
}

// JSONError writes {"error": {...}} with the given status.
func JSONError(w http.ResponseWriter, status int, code, message string, details any) {
	JSON(w, status, struct {
		Error ErrorBody `json:"error"`
	}{ErrorBody{Code: code, Message: message, Details: details}})
}
