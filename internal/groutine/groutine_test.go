package groutine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_NamesContext(t *testing.T) {
	names := make(chan string, 1)
	//nolint:staticcheck // nil parent context is part of the contract
	Go(nil, "connect-aa:01", func(ctx context.Context) {
		names <- GetName(ctx)
	})

	select {
	case name := <-names:
		assert.Equal(t, "connect-aa:01", name)
	case <-time.After(time.Second):
		t.Fatal("goroutine did not run")
	}
}

func TestGoSafe_RecoversPanic(t *testing.T) {
	panics := make(chan *PanicError, 1)
	GoSafe(context.Background(), "rssi-aa:01", func(context.Context) {
		panic("link gone")
	}, func(err *PanicError) {
		panics <- err
	})

	select {
	case err := <-panics:
		require.NotNil(t, err)
		assert.Equal(t, "rssi-aa:01", err.Name)
		assert.Equal(t, "link gone", err.Value)
		assert.NotEmpty(t, err.Stack)
		assert.Equal(t, `goroutine "rssi-aa:01" panicked: link gone`, err.Error())
	case <-time.After(time.Second):
		t.Fatal("panic was not reported")
	}
}

func TestGetName_Empty(t *testing.T) {
	assert.Empty(t, GetName(context.Background()))
	//nolint:staticcheck // nil context is tolerated
	assert.Empty(t, GetName(nil))
}
