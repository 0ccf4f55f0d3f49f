// internal/graph/types.go
package graph

// MessageID is the server-assigned opaque message identifier.
type MessageID string

// Message is the transient view of one unread mail, parsed per poll
// cycle and discarded after processing.
type Message struct {
	ID            MessageID
	Subject       string
	BodyPreview   string
	SenderAddress string
}

// Wire shapes for the Graph message list endpoint.
type listResponse struct {
	Value []messageResource `json:"value"`
}

type messageResource struct {
	ID          string       `json:"id"`
	Subject     string       `json:"subject"`
	BodyPreview string       `json:"bodyPreview"`
	From        fromResource `json:"from"`
}

type fromResource struct {
	EmailAddress emailAddressResource `json:"emailAddress"`
}

type emailAddressResource struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type markReadRequest struct {
	IsRead bool `json:"isRead"`
}
