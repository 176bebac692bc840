// Package api holds the JSON envelope every endpoint answers with.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// JSON writes v with the given status code. v is encoded before anything
// is written, so an unencodable value becomes a 500 instead of an empty body.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		zap.L().Error("encode JSON response", zap.Int("status", status), zap.Error(err))
		buf.Reset()
		status = http.StatusInternalServerError
		_ = json.NewEncoder(&buf).Encode(map[string]interface{}{
			"success": false,
			"message": "Error encoding response",
			"error":   err.Error(),
		})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Error writes {success:false, message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

// ServerError logs err and writes a 500 carrying message and the error
// text. The stack trace is included only in development.
func ServerError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, development bool, message string, err error) {
	logger.Error(message,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))

	body := map[string]interface{}{
		"success": false,
		"message": message,
		"error":   err.Error(),
	}
	if development {
		body["stack"] = fmt.Sprintf("%+v", err)
	}
	JSON(w, http.StatusInternalServerError, body)
}
