package book

import "github.com/sabinquant/hftbt/internal/apperrors"

// ErrOrderNotFound builds the structured error returned when a Cancel
// message references an order_id absent from the lookup table.
func ErrOrderNotFound(id uint64) error {
	return apperrors.Newf(apperrors.ErrOrderNotFound, "order %d not found", id).
		WithDetail("order_id", id)
}
