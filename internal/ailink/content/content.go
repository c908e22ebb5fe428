package content

// ContentType represents supported content types using IANA media types.
type ContentType string

const (
	ContentTypeText ContentType = "text/plain"
)

// Chat roles understood by every driver.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentBlock represents a single piece of content.
type ContentBlock struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Text joins the text blocks of the message.
func (m Message) Text() string {
	out := ""
	for _, block := range m.Content {
		if block.Type == ContentTypeText {
			out += block.Text
		}
	}
	return out
}
