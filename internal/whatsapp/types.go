// Package whatsapp implements the WhatsApp Cloud API surface the gateway
// touches: webhook payload shapes, delivery signature verification, and the
// Graph API client used for media resolution and outbound messages.
package whatsapp

// Envelope is the top-level webhook delivery payload.
type Envelope struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the messages (or status notifications) of one change.
type Value struct {
	MessagingProduct string      `json:"messaging_product"`
	Metadata         Metadata    `json:"metadata"`
	Messages         []MessageIn `json:"messages"`
	Statuses         []Status    `json:"statuses"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Status is a delivery/read notification; the gateway logs and ignores these.
type Status struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// MessageIn is one inbound user message.
type MessageIn struct {
	ID          string       `json:"id"`
	From        string       `json:"from"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *TextBody    `json:"text,omitempty"`
	Audio       *MediaBody   `json:"audio,omitempty"`
	Image       *MediaBody   `json:"image,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
}

type TextBody struct {
	Body string `json:"body"`
}

type MediaBody struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
}

// Interactive holds button/list reply content.
type Interactive struct {
	Type        string        `json:"type"`
	ButtonReply *OptionReply  `json:"button_reply,omitempty"`
	ListReply   *OptionReply  `json:"list_reply,omitempty"`
}

type OptionReply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ReplyText extracts the textual content of an interactive reply.
func (i *Interactive) ReplyText() string {
	if i == nil {
		return ""
	}
	if i.ButtonReply != nil && i.ButtonReply.Title != "" {
		return i.ButtonReply.Title
	}
	if i.ListReply != nil {
		return i.ListReply.Title
	}
	return ""
}

// mediaMeta is the Graph API response for GET /{media_id}.
type mediaMeta struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
	FileSize int64  `json:"file_size"`
}

// sendResponse is the Graph API response for POST /{phone_id}/messages.
type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}
