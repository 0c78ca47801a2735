package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tempvortex/internal/model"
)

func TestBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	a, cancelA := bus.Subscribe(4)
	defer cancelA()
	b, cancelB := bus.Subscribe(4)
	defer cancelB()

	acct := &model.Account{Address: "x@1secmail.com", Provider: model.ProviderOneSecMail}
	bus.Publish(New(TypeNewMail, acct))

	for _, ch := range []<-chan Event{a, b} {
		e := <-ch
		assert.Equal(t, TypeNewMail, e.Type)
		assert.Equal(t, "x@1secmail.com", e.Address)
		assert.Equal(t, model.ProviderOneSecMail, e.Provider)
		assert.NotEmpty(t, e.ID)
	}
}

func TestBusPublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	bus.Publish(New(TypeSyncFailed, nil))
	bus.Publish(New(TypeSyncFailed, nil))

	require.Len(t, ch, 1)
}

func TestBusCancelClosesChannel(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	bus.Publish(New(TypeInboxReplaced, nil))
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Subscribe(1)
	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := bus.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)
}
