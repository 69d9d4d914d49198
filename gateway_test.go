package gateways

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ygrebnov/gateways/observe"
)

type recordingConsumer struct {
	acceptsTermination bool
	recordErr          error

	mu        sync.Mutex
	completed []*Message
	failed    []error
}

func (c *recordingConsumer) RecordCompleted(m *Message) error {
	if c.recordErr != nil {
		return c.recordErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed = append(c.completed, m)
	return nil
}

func (c *recordingConsumer) AcceptsTermination() bool { return c.acceptsTermination }

func (c *recordingConsumer) RecordFailed(_ *Message, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed = append(c.failed, err)
}

func TestNewGateway_NilConsumer(t *testing.T) {
	_, err := NewGateway(0, nil)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestGateway_Assign(t *testing.T) {
	completed, _ := NewMessage(1)
	require.NoError(t, completed.MarkCompleted())
	term := mustTermination(t, 1)

	tests := []struct {
		name     string
		consumer *recordingConsumer
		msg      *Message
		wantErr  error
	}{
		{name: "nil message", consumer: &recordingConsumer{}, msg: nil, wantErr: ErrInvalidArgument},
		{name: "completed message", consumer: &recordingConsumer{}, msg: completed, wantErr: ErrInvalidArgument},
		{name: "termination to base consumer", consumer: &recordingConsumer{}, msg: term, wantErr: ErrUnsupportedMessage},
		{name: "termination to termination consumer", consumer: &recordingConsumer{acceptsTermination: true}, msg: term},
		{name: "ordinary message", consumer: &recordingConsumer{}, msg: mustMessages(t, 2)[0]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGateway(0, tt.consumer)
			require.NoError(t, err)

			err = g.Assign(tt.msg)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, g.Available(), "rejected assignment must not reserve the gateway")
				return
			}
			require.NoError(t, err)
			assert.False(t, g.Available())
			assert.Same(t, tt.msg, g.Current())
		})
	}
}

func TestGateway_AssignBusy(t *testing.T) {
	g, _ := NewGateway(3, &recordingConsumer{})
	msgs := mustMessages(t, 1, 1)
	require.NoError(t, g.Assign(msgs[0]))
	require.ErrorIs(t, g.Assign(msgs[1]), ErrInvalidState)
}

func TestGateway_ProcessCompletes(t *testing.T) {
	c := &recordingConsumer{}
	var events []observe.Event
	var handled *Message
	g, _ := NewGateway(1, c,
		WithGatewayHandler(func(_ context.Context, m *Message) error {
			handled = m
			return nil
		}),
		WithGatewaySink(observe.SinkFunc(func(e observe.Event) { events = append(events, e) })),
	)
	m := mustMessages(t, 4)[0]
	require.NoError(t, g.Assign(m))
	require.NoError(t, g.Process(context.Background()))

	assert.Same(t, m, handled)
	assert.True(t, m.IsCompleted())
	assert.True(t, g.Available())
	assert.Nil(t, g.Current())
	assert.Equal(t, []*Message{m}, c.completed)
	require.Len(t, events, 1)
	assert.Equal(t, observe.MessageCompleted, events[0].Kind)
	assert.Equal(t, 1, events[0].Gateway)
	assert.Equal(t, 4, events[0].GroupID)
}

func TestGateway_ProcessWithoutAssignment(t *testing.T) {
	g, _ := NewGateway(0, &recordingConsumer{})
	require.ErrorIs(t, g.Process(context.Background()), ErrInvalidState)
}

func TestGateway_ProcessFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		handler   Handler
		consumer  *recordingConsumer
		ctx       func() (context.Context, context.CancelFunc)
		wantErr   error
		completed bool
	}{
		{
			name:    "handler error",
			handler: func(context.Context, *Message) error { return boom },
			wantErr: boom,
		},
		{
			name:    "handler panic",
			handler: func(context.Context, *Message) error { panic("kaboom") },
			wantErr: ErrHandlerPanicked,
		},
		{
			name: "context cancelled",
			handler: func(ctx context.Context, _ *Message) error {
				<-ctx.Done()
				time.Sleep(10 * time.Millisecond)
				return nil
			},
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(context.Background(), 20*time.Millisecond)
			},
			wantErr: ErrHandlerCancelled,
		},
		{
			name:      "consumer rejects",
			consumer:  &recordingConsumer{recordErr: boom},
			wantErr:   boom,
			completed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.consumer
			if c == nil {
				c = &recordingConsumer{}
			}
			ctx, cancel := context.WithCancel(context.Background())
			if tt.ctx != nil {
				ctx, cancel = tt.ctx()
			}
			defer cancel()

			g, _ := NewGateway(0, c, WithGatewayHandler(tt.handler))
			m := mustMessages(t, 9)[0]
			require.NoError(t, g.Assign(m))

			err := g.Process(ctx)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.completed, m.IsCompleted())
			assert.True(t, g.Available())

			id, ok := ExtractMessageID(err)
			assert.True(t, ok)
			assert.Equal(t, m.ID(), id)

			require.Len(t, c.failed, 1)
			assert.ErrorIs(t, c.failed[0], tt.wantErr)
		})
	}
}

func TestGateway_ProcessSignalsCompletion(t *testing.T) {
	g, _ := NewGateway(2, &recordingConsumer{})
	m := mustMessages(t, 1)[0]
	done := make(chan completion, 1)
	require.NoError(t, g.assign(m, 5, done))

	go func() { _ = g.Process(context.Background()) }()

	select {
	case c := <-done:
		assert.Equal(t, 2, c.gateway)
		assert.Equal(t, 5, c.seq)
		assert.Same(t, m, c.msg)
		assert.NoError(t, c.err)
		assert.True(t, g.Available(), "gateway must be available once completion is signalled")
	case <-time.After(time.Second):
		t.Fatal("completion was not signalled")
	}
}
