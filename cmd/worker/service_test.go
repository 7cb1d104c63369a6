package main

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type consumerFunc func(context.Context) error

func (f consumerFunc) Run(ctx context.Context) error { return f(ctx) }

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "worker-test", Output: io.Discard})
}

func TestRunFailsFastOnUnreadyDependency(t *testing.T) {
	ran := false
	service, err := NewService(ServiceParams{
		Logger:       quietLogger(),
		Dependencies: map[string]pinger{"database": stubPinger{}, "redis": stubPinger{err: errors.New("refused")}},
		Consumers:    map[string]consumer{"mail": consumerFunc(func(context.Context) error { ran = true; return nil })},
	})
	require.NoError(t, err)

	err = service.Run(context.Background())
	assert.ErrorContains(t, err, "redis ping failed")
	assert.False(t, ran)
}

func TestRunStopsSiblingsWhenAConsumerFails(t *testing.T) {
	siblingStopped := make(chan struct{})
	service, err := NewService(ServiceParams{
		Logger: quietLogger(),
		Consumers: map[string]consumer{
			"broken": consumerFunc(func(context.Context) error { return errors.New("subscription deleted") }),
			"mail": consumerFunc(func(ctx context.Context) error {
				<-ctx.Done()
				close(siblingStopped)
				return ctx.Err()
			}),
		},
		Heartbeat: time.Millisecond,
	})
	require.NoError(t, err)

	err = service.Run(context.Background())
	assert.ErrorContains(t, err, "consumer broken")
	select {
	case <-siblingStopped:
	case <-time.After(time.Second):
		t.Fatal("sibling consumer was not canceled")
	}
}

func TestRunReturnsCanceledOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	service, err := NewService(ServiceParams{
		Logger: quietLogger(),
		Consumers: map[string]consumer{"mail": consumerFunc(func(ctx context.Context) error {
			cancel()
			<-ctx.Done()
			return ctx.Err()
		})},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, service.Run(ctx), context.Canceled)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: quietLogger()})
	assert.Error(t, err)
	_, err = NewService(ServiceParams{Logger: quietLogger(), Consumers: map[string]consumer{"mail": nil}})
	assert.Error(t, err)
}
