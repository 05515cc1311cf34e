package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/sagip-cad/emergency-dispatch-api/databases/mocks"
)

func TestFeed_RegisterUnregister(t *testing.T) {
	feed := NewFeed(&mocks.EmergencyDatabase{}, zap.NewNop().Sugar())

	id, ticks, errs := feed.Register()
	assert.NotEmpty(t, id)

	feed.Unregister(id)
	_, ok := <-ticks
	assert.False(t, ok)
	_, ok = <-errs
	assert.False(t, ok)

	// double unregister must not panic
	feed.Unregister(id)
}

func TestFeed_TicksCoalesce(t *testing.T) {
	feed := NewFeed(&mocks.EmergencyDatabase{}, zap.NewNop().Sugar())

	id, ticks, _ := feed.Register()
	defer feed.Unregister(id)

	// a slow subscriber gets at most one pending tick, not a backlog
	feed.broadcast()
	feed.broadcast()
	feed.broadcast()

	<-ticks
	select {
	case <-ticks:
		t.Fatal("expected coalesced ticks, got a backlog")
	default:
	}
}

func TestFeed_RunBroadcastsPerChangeAndRecovers(t *testing.T) {
	edb := &mocks.EmergencyDatabase{}
	stream := &mocks.ChangeStreamHelper{}

	stream.On("Next", mock.Anything).Return(true).Twice()
	stream.On("Next", mock.Anything).Return(false)
	stream.On("Err").Return(errors.New("cursor died"))
	stream.On("Close", mock.Anything).Return(nil)

	edb.On("Watch", mock.Anything, mock.Anything).Return(stream, nil).Once()
	// the reopen fails until the test cancels the context
	edb.On("Watch", mock.Anything, mock.Anything).Return(nil, errors.New("still down"))

	feed := NewFeed(edb, zap.NewNop().Sugar())
	id, ticks, errs := feed.Register()
	defer feed.Unregister(id)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		feed.Run(ctx)
		close(done)
	}()

	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("no tick from the change stream")
	}

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("broken stream not surfaced to subscribers")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop on context cancel")
	}
}
