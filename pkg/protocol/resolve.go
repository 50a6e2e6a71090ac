package protocol

// Receive holds the delivery endpoints of a resolved address.
type Receive struct {
	InboxURL string `json:"inbox_url"`
}

// ResolveResult is the body of a successful resolve response.
type ResolveResult struct {
	Version      string          `json:"version"`
	Address      string          `json:"aap"`
	PublicKey    string          `json:"public_key"`
	Receive      Receive         `json:"receive"`
	Capabilities map[string]bool `json:"capabilities,omitempty"`
}

// Normalize applies defaults to a result decoded from an older provider.
func (r *ResolveResult) Normalize() {
	if r.Version == "" {
		r.Version = DefaultVersion
	}
}

// Provider capability names.
const (
	CapabilityIdempotency = "idempotency"
	CapabilityWebSocket   = "websocket"
	CapabilitySMTPBridge  = "smtp_bridge"
	CapabilityFeed        = "feed"
)

// ProviderInfo is served at PathProviderInfo.
type ProviderInfo struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Domain       string            `json:"domain"`
	Capabilities map[string]bool   `json:"capabilities,omitempty"`
	Endpoints    map[string]string `json:"endpoints,omitempty"`
}

// ErrorDetail is the machine readable part of a provider error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorBody is the wire shape of every provider error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// DeliveryReceipt is returned when an inbox accepts a message.
type DeliveryReceipt struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

// InboxPage is the body of an inbox fetch.
type InboxPage struct {
	Messages []StoredMessage `json:"messages"`
	Count    int             `json:"count"`
}

// RegisterRequest registers an agent with a provider.
type RegisterRequest struct {
	Address string `json:"aap_address"`
	Model   string `json:"model,omitempty"`
}

// RegisterResponse carries the agent's API key. The key is shown only once.
type RegisterResponse struct {
	Success  bool   `json:"success"`
	Address  string `json:"aap_address"`
	APIKey   string `json:"api_key"`
	Provider string `json:"provider"`
	Message  string `json:"message"`
}
