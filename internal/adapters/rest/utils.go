package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
)

type errorBody struct {
	Error string `json:"error"`
}

// WriteJSONError отвечает телом {"error": message}
func WriteJSONError(w http.ResponseWriter, statusCode int, message string) {
	RespondWithJSON(w, statusCode, errorBody{Error: message})
}

// RespondWithJSON сериализует payload целиком до записи заголовков,
// чтобы ошибка сериализации еще могла стать ответом 500
func RespondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		http.Error(w, "Failed to marshal JSON response", http.StatusInternalServerError)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(statusCode)
	_, _ = buf.WriteTo(w)
}
