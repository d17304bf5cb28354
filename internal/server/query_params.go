package server

import (
	"strconv"
	"strings"

	orderdomain "github.com/smallbiznis/panucci/internal/order/domain"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseOptionalStatus accepts an empty value as "no filter".
func parseOptionalStatus(value string) (orderdomain.Status, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(value))
	if trimmed == "" {
		return "", nil
	}
	status := orderdomain.Status(trimmed)
	if !status.Valid() {
		return "", orderdomain.ErrInvalidStatus
	}
	return status, nil
}
