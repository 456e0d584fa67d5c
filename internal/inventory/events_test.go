package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductEventHandler_Handle(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService()
	handler := NewProductEventHandler(svc, svc.logger)

	payload := []byte(`{"productId":101,"productName":"Keyboard","initialQuantity":12}`)
	require.NoError(t, handler.Handle(ctx, payload))
	assert.Equal(t, 12, available(t, store, 101))

	// redelivery leaves the row untouched
	require.NoError(t, handler.Handle(ctx, []byte(`{"productId":101,"productName":"Keyboard","initialQuantity":50}`)))
	assert.Equal(t, 12, available(t, store, 101))

	assert.NoError(t, handler.Handle(ctx, []byte(`not json`)))
	assert.NoError(t, handler.Handle(ctx, []byte(`{"productName":"Nameless"}`)))
}
