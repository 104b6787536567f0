package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "neorest/pkg/errors"

	"github.com/cespare/xxhash/v2"
)

// maxBodyBytes bounds every request body read by the handlers
const maxBodyBytes = 1 << 20

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondEmpty sends a JSON typed response without a body
func respondEmpty(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
}

// respondCached sends a JSON response tagged with a strong ETag of its body.
// A matching If-None-Match yields 304 without a body.
func respondCached(w http.ResponseWriter, r *http.Request, data interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return apperrors.NewInternalError("Failed to encode response").WithCause(err)
	}
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))

	w.Header().Set("ETag", etag)
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// readBody reads the raw request body
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, apperrors.NewBadRequestError("Failed to read request body").WithCause(err)
	}
	return body, nil
}

// decodeJSON decodes the request body into v with numbers kept exact
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return apperrors.NewBadRequestError("Invalid request body: " + err.Error())
	}
	return nil
}
