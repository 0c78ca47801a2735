package mailtm

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Collection decodes list endpoints, which answer either with a bare
// JSON array or with a Hydra collection wrapping the items in
// "hydra:member" depending on the Accept header.
type Collection[T any] struct {
	Items []T
	Total int
}

// UnmarshalJSON accepts both collection shapes.
func (c *Collection[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &c.Items); err != nil {
			return err
		}
		c.Total = len(c.Items)
		return nil
	}

	var wrapped struct {
		Members []T `json:"hydra:member"`
		Total   int `json:"hydra:totalItems"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	c.Items = wrapped.Members
	c.Total = wrapped.Total
	return nil
}

// Domain is an entry of GET /domains.
type Domain struct {
	ID       string `json:"id"`
	Domain   string `json:"domain"`
	IsActive bool   `json:"isActive"`
}

// Credentials is the body of POST /accounts and POST /token.
type Credentials struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

// Account is the response from POST /accounts.
type Account struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// TokenResponse is the response from POST /token.
type TokenResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// Address is a sender or recipient.
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// String renders the address as "Name <address>" when a name is set.
func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return a.Name + " <" + a.Address + ">"
}

// Message is an entry of GET /messages.
type Message struct {
	ID             string  `json:"id"`
	From           Address `json:"from"`
	Subject        string  `json:"subject"`
	Intro          string  `json:"intro"`
	Seen           bool    `json:"seen"`
	HasAttachments bool    `json:"hasAttachments"`
	CreatedAt      string  `json:"createdAt"`
}

// MessageDetail is the response from GET /messages/{id}.
type MessageDetail struct {
	Message
	Text        string       `json:"text"`
	HTML        []string     `json:"html"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment describes a file attached to a message. DownloadURL is
// relative to the API root and requires the bearer token.
type Attachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"downloadUrl"`
}

// ErrorResponse covers the error shapes returned by the API.
type ErrorResponse struct {
	Detail      string      `json:"detail"`
	Description string      `json:"hydra:description"`
	Message     string      `json:"message"`
	Violations  []Violation `json:"violations"`
}

// Violation is a single validation failure.
type Violation struct {
	PropertyPath string `json:"propertyPath"`
	Message      string `json:"message"`
}

// errorDetail extracts the most specific message from an error body.
func errorDetail(body []byte) string {
	var resp ErrorResponse
	if json.Unmarshal(body, &resp) != nil {
		return strings.TrimSpace(string(body))
	}
	switch {
	case resp.Detail != "":
		return resp.Detail
	case resp.Description != "":
		return resp.Description
	case len(resp.Violations) > 0:
		parts := make([]string, 0, len(resp.Violations))
		for _, v := range resp.Violations {
			parts = append(parts, v.PropertyPath+": "+v.Message)
		}
		return strings.Join(parts, "; ")
	default:
		return resp.Message
	}
}
