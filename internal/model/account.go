package model

import (
	"fmt"
	"strings"
)

// Account identifies a provisioned mailbox on a provider.
type Account struct {
	// Address is the full mailbox address (login@domain).
	Address string `json:"address"`

	// Token is the bearer or session credential. Empty for stateless
	// providers that address mailboxes by login alone.
	Token string `json:"token,omitempty"`

	// ExternalID is the provider-side account identifier, when one exists.
	ExternalID string `json:"id,omitempty"`

	// Provider is the backend that owns this mailbox.
	Provider ProviderID `json:"provider"`
}

// SplitAddress returns the login and domain parts of the address.
func (a Account) SplitAddress() (login, domain string, err error) {
	login, domain, ok := strings.Cut(a.Address, "@")
	if !ok || login == "" || domain == "" || strings.Contains(domain, "@") {
		return "", "", fmt.Errorf("malformed address %q", a.Address)
	}
	return login, domain, nil
}

// Same reports whether b refers to the same mailbox and credential as a.
func (a Account) Same(b Account) bool {
	return a.Address == b.Address &&
		a.Provider == b.Provider &&
		a.Token == b.Token
}

// Session is the persisted account/provider pair restored on startup.
type Session struct {
	Account  *Account   `json:"account"`
	Provider ProviderID `json:"provider"`
}
