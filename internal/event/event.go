package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/nhle/tempvortex/internal/model"
)

// Type identifies what happened.
type Type string

const (
	// TypeNewMessage is published once per newly seen message id, in
	// provider order, carrying the un-hydrated summary.
	TypeNewMessage Type = "new_message"

	// TypeNewMail is published at most once per poll when anything new
	// arrived, carrying every new summary of that poll.
	TypeNewMail Type = "new_mail"

	// TypeInboxReplaced carries the full current message list.
	TypeInboxReplaced Type = "inbox_replaced"

	// TypeHydrated carries a message whose content was just fetched.
	TypeHydrated Type = "hydrated"

	// TypeSyncFailed reports a non-fatal poll failure.
	TypeSyncFailed Type = "sync_failed"

	// TypeAccountFailed reports a failed account operation.
	TypeAccountFailed Type = "account_failed"

	// TypeAccountChanged reports a new active account.
	TypeAccountChanged Type = "account_changed"
)

// Event is a notification published to subscribers of a Bus.
type Event struct {
	ID       string           `json:"id"`
	Type     Type             `json:"type"`
	Provider model.ProviderID `json:"provider,omitempty"`
	Address  string           `json:"address,omitempty"`

	// Messages is set for new_message, new_mail, inbox_replaced and
	// hydrated events.
	Messages []model.Message `json:"messages,omitempty"`

	// MessageID is set for hydrated events.
	MessageID string `json:"messageId,omitempty"`

	// Code is the one-time passcode detected in a hydrated message.
	Code string `json:"code,omitempty"`

	// Error is the failure text for sync_failed and account_failed.
	Error string `json:"error,omitempty"`

	// Reason classifies account_failed events ("rejected", "network").
	Reason string `json:"reason,omitempty"`

	At time.Time `json:"at"`
}

// New returns an event of the given type for account, stamped with a
// fresh id and the current time.
func New(t Type, account *model.Account) Event {
	e := Event{
		ID:   uuid.NewString(),
		Type: t,
		At:   time.Now(),
	}
	if account != nil {
		e.Provider = account.Provider
		e.Address = account.Address
	}
	return e
}
