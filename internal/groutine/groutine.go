// Package groutine starts named goroutines. Names are attached as pprof
// labels and are readable from the context inside the goroutine.
package groutine

import (
	"context"
	"fmt"
	"runtime/debug"
	"runtime/pprof"
)

type ctxKey string

const goroutineNameKey ctxKey = "goroutine_name"

// PanicError carries a value recovered from a goroutine started with GoSafe
type PanicError struct {
	Name  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("goroutine %q panicked: %v", e.Name, e.Value)
}

// Go starts fn on a goroutine labelled name. A nil parentCtx means
// context.Background().
//
//	groutine.Go(ctx, "rssi-sample", func(ctx context.Context) {
//	    // work
//	})
func Go(parentCtx context.Context, name string, fn func(ctx context.Context)) {
	if parentCtx == nil {
		parentCtx = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parentCtx, labels, func(ctx context.Context) {
		ctx = context.WithValue(ctx, goroutineNameKey, name)
		fn(ctx)
	})
}

// GoSafe is Go with panic recovery. A panic in fn is turned into a
// *PanicError and passed to onPanic instead of crashing the process.
func GoSafe(parentCtx context.Context, name string, fn func(ctx context.Context), onPanic func(err *PanicError)) {
	Go(parentCtx, name, func(ctx context.Context) {
		defer func() {
			if r := recover(); r != nil && onPanic != nil {
				onPanic(&PanicError{Name: name, Value: r, Stack: debug.Stack()})
			}
		}()
		fn(ctx)
	})
}

// GetName retrieves the goroutine name from the context
func GetName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(goroutineNameKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
