package models

// Notification is a validated push intent addressed to one recipient.
// Notification 是一个已校验的推送意图，发往单个接收方。
type Notification struct {
	// Recipient is the device token used in the request path.
	Recipient string

	Title string
	Body  string

	// Badge is omitted from the payload when nil.
	Badge *int

	// Sound is omitted from the payload when nil.
	Sound *string

	// PayloadFragment is raw JSON member text, e.g. `"type":"alert","id":42`,
	// spliced verbatim after the aps object. It is trusted and not validated.
	PayloadFragment string

	Environment Environment
}

// Content is the recipient-independent part of a notification, used for
// broadcast where the recipient comes from the registry.
type Content struct {
	Title           string
	Body            string
	Badge           *int
	Sound           *string
	PayloadFragment string
}

// For returns a notification of c addressed to recipient in env.
func (c Content) For(recipient string, env Environment) Notification {
	return Notification{
		Recipient:       recipient,
		Title:           c.Title,
		Body:            c.Body,
		Badge:           c.Badge,
		Sound:           c.Sound,
		PayloadFragment: c.PayloadFragment,
		Environment:     env,
	}
}

// Clone returns a deep copy so a background unit owns its own data.
func (n Notification) Clone() Notification {
	c := n
	if n.Badge != nil {
		b := *n.Badge
		c.Badge = &b
	}
	if n.Sound != nil {
		s := *n.Sound
		c.Sound = &s
	}
	return c
}

// Clone returns a deep copy of c.
func (c Content) Clone() Content {
	n := c.For("", "").Clone()
	return Content{
		Title:           n.Title,
		Body:            n.Body,
		Badge:           n.Badge,
		Sound:           n.Sound,
		PayloadFragment: n.PayloadFragment,
	}
}
