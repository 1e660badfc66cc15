package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// envelope is the uniform response body of every endpoint.
type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message,omitempty"`
	Data    any                 `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, envelope{Success: true, Message: message, Data: data})
}

func fail(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, envelope{Success: false, Message: message})
}

// respondError maps domain errors to status codes. fallback is the message
// used for storage failures, whose detail never leaves the service.
func respondError(w http.ResponseWriter, err error, fallback string) {
	var (
		vErr  *orders.ValidationError
		nfErr *orders.NotFoundError
		isErr *orders.InsufficientStockError
	)

	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusUnprocessableEntity, envelope{
			Message: "Error de validación",
			Errors:  map[string][]string{vErr.Field: {vErr.Reason}},
		})
	case errors.As(err, &isErr):
		writeJSON(w, http.StatusConflict, envelope{
			Message: "Stock insuficiente",
			Errors:  map[string][]string{"items": {isErr.Error()}},
		})
	case errors.As(err, &nfErr):
		if nfErr.Resource == "product" {
			fail(w, http.StatusNotFound, "Producto no encontrado")
			return
		}
		fail(w, http.StatusNotFound, "Pedido no encontrado")
	case errors.Is(err, orders.ErrInvalidTransition):
		fail(w, http.StatusBadRequest, "Solo se pueden cancelar pedidos pendientes")
	default:
		fail(w, http.StatusInternalServerError, fallback)
	}
}
