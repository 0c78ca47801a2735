package onesecmail

// MessageSummary is one entry of the getMessages response.
type MessageSummary struct {
	ID      int64  `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
}

// MessageDetail is the readMessage response.
type MessageDetail struct {
	ID          int64        `json:"id"`
	From        string       `json:"from"`
	Subject     string       `json:"subject"`
	Date        string       `json:"date"`
	Attachments []Attachment `json:"attachments"`
	Body        string       `json:"body"`
	TextBody    string       `json:"textBody"`
	HTMLBody    string       `json:"htmlBody"`
}

// Attachment describes a file attached to a message.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}
