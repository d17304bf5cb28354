package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesKeepsAllowList(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/v1/orders"),
		attribute.String("customer.email", "someone@example.com"),
		attribute.String("customer.cliente_id", "CL0001"),
	)

	assert.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
	assert.Equal(t, attribute.Key("customer.cliente_id"), attrs[1].Key)
}

func TestSafeErrorTrimsDetail(t *testing.T) {
	err := SafeError(errors.New("allocate customer id: duplicate key value violates unique constraint"))
	assert.EqualError(t, err, "allocate customer id")
	assert.Nil(t, SafeError(nil))
}
