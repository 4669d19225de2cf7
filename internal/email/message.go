package email

// Message is the parsed form of an outbound MIME message.
type Message struct {
	From        string
	To          []string
	Subject     string
	MessageID   string
	TextBody    string
	HTMLBody    string
	Attachments []Part
	RawHeaders  map[string][]string
}

// Part is a decoded attachment found in a Message.
type Part struct {
	Filename    string
	ContentType string
	Content     []byte
}
