package guerrilla

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexString decodes values the API sends either as JSON strings or as
// bare numbers (mail_id, mail_timestamp, mail_read).
type flexString string

// UnmarshalJSON accepts a string, number, boolean or null.
func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	switch string(trimmed) {
	case "true":
		*f = "1"
	case "false":
		*f = "0"
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*f = flexString(n.String())
	}
	return nil
}

// Int64 parses the value as an integer, returning 0 when it is not one.
func (f flexString) Int64() int64 {
	n, err := strconv.ParseInt(string(f), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// AddressResponse is returned by f=get_email_address.
type AddressResponse struct {
	EmailAddr      string     `json:"email_addr"`
	EmailTimestamp flexString `json:"email_timestamp"`
	Alias          string     `json:"alias"`
	SIDToken       string     `json:"sid_token"`
}

// CheckResponse is returned by f=check_email.
type CheckResponse struct {
	List     []MailSummary `json:"list"`
	Count    flexString    `json:"count"`
	Email    string        `json:"email"`
	SIDToken string        `json:"sid_token"`
}

// MailSummary is one entry of CheckResponse.List.
type MailSummary struct {
	MailID        flexString `json:"mail_id"`
	MailFrom      string     `json:"mail_from"`
	MailSubject   string     `json:"mail_subject"`
	MailExcerpt   string     `json:"mail_excerpt"`
	MailTimestamp flexString `json:"mail_timestamp"`
	MailRead      flexString `json:"mail_read"`
}

// Mail is returned by f=fetch_email. mail_body is HTML.
type Mail struct {
	MailSummary
	MailBody string `json:"mail_body"`
}

// DeleteResponse is returned by f=del_email.
type DeleteResponse struct {
	DeletedIDs []flexString `json:"deleted_ids"`
}
