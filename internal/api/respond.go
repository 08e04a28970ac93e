package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"

	"culture-sentinel/internal/domain/entity"
)

// writeResponse пишет ответ в JSON или, при format=msgpack, в MessagePack
func writeResponse(w http.ResponseWriter, req *http.Request, status int, data any) error {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if req.URL.Query().Get("format") == "msgpack" {
		w.Header().Set("Content-Type", "application/x-msgpack")
		w.WriteHeader(status)
		encoder := msgpack.NewEncoder(w)
		encoder.SetCustomStructTag("json")
		return encoder.Encode(data)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor код ответа по сигнальной ошибке домена
func statusFor(err error) int {
	switch {
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrModelNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, entity.ErrInvalidArgument),
		errors.Is(err, entity.ErrNoSamples),
		errors.Is(err, entity.ErrImageDecode):
		return http.StatusBadRequest
	case errors.Is(err, entity.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
