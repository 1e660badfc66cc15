package orders

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxShippingAddressLen = 500
	maxPhoneLen           = 20
	maxNotesLen           = 500
	maxIdempotencyKeyLen  = 128

	// MaxItemQuantity matches the integer columns quantities are stored in.
	MaxItemQuantity = math.MaxInt32
)

// PlaceOrder is the input of the order creation workflow.
type PlaceOrder struct {
	UserID          string
	Items           []ItemInput
	ShippingAddress string
	Phone           string
	Notes           *string
	IdempotencyKey  string
}

// Validate checks the shape of the request only; stock and product
// existence are checked against the store.
func (p PlaceOrder) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if len(p.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	for i, it := range p.Items {
		if it.ProductID == uuid.Nil {
			return &ValidationError{Field: fmt.Sprintf("items.%d.product_id", i), Reason: "is required"}
		}
		if it.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("items.%d.quantity", i), Reason: "must be at least 1"}
		}
		if it.Quantity > MaxItemQuantity {
			return &ValidationError{Field: fmt.Sprintf("items.%d.quantity", i), Reason: fmt.Sprintf("must be at most %d", MaxItemQuantity)}
		}
	}
	if err := requiredText("shipping_address", p.ShippingAddress, maxShippingAddressLen); err != nil {
		return err
	}
	if err := requiredText("phone", p.Phone, maxPhoneLen); err != nil {
		return err
	}
	if p.Notes != nil && utf8.RuneCountInString(*p.Notes) > maxNotesLen {
		return &ValidationError{Field: "notes", Reason: fmt.Sprintf("must be at most %d characters", maxNotesLen)}
	}
	if utf8.RuneCountInString(p.IdempotencyKey) > maxIdempotencyKeyLen {
		return &ValidationError{Field: "idempotency_key", Reason: fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLen)}
	}
	return nil
}

func requiredText(field, v string, max int) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	if utf8.RuneCountInString(v) > max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}
