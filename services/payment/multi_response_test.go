package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"multigateway-api/models"
)

func step(resp *models.Response, err error) Step {
	return func(context.Context) (*models.Response, error) { return resp, err }
}

func TestMultiResponseStopsAfterFailure(t *testing.T) {
	var m MultiResponse
	ctx := context.Background()

	require.NoError(t, m.Process(ctx, step(&models.Response{Success: false, Message: "declined", ErrorCode: models.ErrorCardDeclined}, nil), false))
	called := false
	require.NoError(t, m.Process(ctx, func(context.Context) (*models.Response, error) {
		called = true
		return &models.Response{Success: true}, nil
	}, false))

	assert.False(t, called)
	assert.False(t, m.Success())
	assert.Equal(t, models.ErrorCardDeclined, m.Result().ErrorCode)
}

func TestMultiResponseIgnoredStepDoesNotFail(t *testing.T) {
	var m MultiResponse
	ctx := context.Background()

	require.NoError(t, m.Process(ctx, step(&models.Response{Success: true, Authorization: "auth-1"}, nil), false))
	require.NoError(t, m.Process(ctx, step(&models.Response{Success: false, Message: "void failed"}, nil), true))
	require.NoError(t, m.Process(ctx, step(nil, errors.New("boom")), true))

	result := m.Result()
	assert.True(t, result.Success)
	assert.Equal(t, "auth-1", result.Authorization)
	assert.Len(t, m.Responses, 2)
}

func TestMultiResponsePropagatesErrors(t *testing.T) {
	var m MultiResponse
	err := m.Process(context.Background(), step(nil, ErrTimeout), false)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMultiResponseEmptyIsSuccess(t *testing.T) {
	var m MultiResponse
	assert.True(t, m.Result().Success)
	assert.Nil(t, m.Primary())
}
