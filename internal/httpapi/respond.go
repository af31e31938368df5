package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// internalError logs the cause and answers with a generic body.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, event string, err error) {
	s.Logger.Error(event,
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched
// when optional is true.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
