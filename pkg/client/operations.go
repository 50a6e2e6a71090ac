package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/welldanyogia/aap/pkg/address"
	"github.com/welldanyogia/aap/pkg/protocol"
	"github.com/welldanyogia/aap/pkg/resolver"
)

// SendResult reports an accepted delivery. IdempotencyKey is the key sent
// with every attempt; resend with it after an unknown outcome.
type SendResult struct {
	MessageID      string
	IdempotencyKey string
	Duplicate      bool
	InboxURL       string
}

type sendOptions struct {
	messageType    protocol.MessageType
	replyTo        string
	contentType    string
	metadata       map[string]any
	idempotencyKey string
}

// SendOption customizes SendMessage and Publish.
type SendOption func(*sendOptions)

// WithMessageType sets the envelope message type. Default private.
func WithMessageType(t protocol.MessageType) SendOption {
	return func(o *sendOptions) { o.messageType = t }
}

// WithReplyTo marks the message as a reply.
func WithReplyTo(messageID string) SendOption {
	return func(o *sendOptions) { o.replyTo = messageID }
}

// WithContentType sets the payload MIME type. Default text/plain.
func WithContentType(ct string) SendOption {
	return func(o *sendOptions) { o.contentType = ct }
}

// WithMetadata attaches payload metadata.
func WithMetadata(md map[string]any) SendOption {
	return func(o *sendOptions) { o.metadata = md }
}

// WithIdempotencyKey sends key instead of a generated one.
func WithIdempotencyKey(key string) SendOption {
	return func(o *sendOptions) { o.idempotencyKey = key }
}

// Resolve looks up raw at its provider.
func (c *Client) Resolve(ctx context.Context, raw string) (*protocol.ResolveResult, error) {
	addr, err := address.Parse(raw)
	if err != nil {
		return nil, err
	}
	return c.resolve(ctx, addr)
}

func (c *Client) resolve(ctx context.Context, addr address.Address) (*protocol.ResolveResult, error) {
	ep := resolver.ResolveProviderEndpoints(addr)
	c.logger.Debug("resolving address",
		"address", addr.String(),
		"resolve_url", ep.ResolveURL,
		"discovery_method", ep.DiscoveryMethod,
	)

	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		url:    ep.ResolveURL + "?address=" + url.QueryEscape(addr.String()),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrResolveFailed, addr, err)
	}

	var result protocol.ResolveResult
	if err := json.Unmarshal(resp.body, &result); err != nil {
		return nil, fmt.Errorf("%w: %s: %w: %v", ErrResolveFailed, addr, ErrMalformedResponse, err)
	}
	result.Normalize()
	return &result, nil
}

// SendMessage resolves to and delivers content from from. Private sends get a
// generated idempotency key unless one is supplied; public sends get none.
func (c *Client) SendMessage(ctx context.Context, from, to, content string, opts ...SendOption) (*SendResult, error) {
	fromAddr, err := address.Parse(from)
	if err != nil {
		return nil, err
	}
	toAddr, err := address.Parse(to)
	if err != nil {
		return nil, err
	}

	o := sendOptions{messageType: protocol.MessageTypePrivate}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.messageType.Valid() {
		return nil, fmt.Errorf("%w: %q", protocol.ErrInvalidMessageType, o.messageType)
	}

	resolved, err := c.resolve(ctx, toAddr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMessageFailed, err)
	}
	inboxURL := resolved.Receive.InboxURL
	if inboxURL == "" {
		return nil, fmt.Errorf("%w: %w: no inbox_url for %s", ErrMessageFailed, ErrMalformedResponse, toAddr)
	}

	envOpts := []protocol.EnvelopeOption{protocol.WithMessageType(o.messageType)}
	if o.replyTo != "" {
		envOpts = append(envOpts, protocol.WithReplyTo(o.replyTo))
	}
	if o.contentType != "" {
		envOpts = append(envOpts, protocol.WithContentType(o.contentType))
	}
	body := protocol.Body{
		Envelope: protocol.NewEnvelope(fromAddr, toAddr, envOpts...),
		Payload:  protocol.Payload{Content: content, Metadata: o.metadata},
	}

	key := o.idempotencyKey
	if key == "" && o.messageType == protocol.MessageTypePrivate {
		key = c.newKey()
	}
	header := http.Header{}
	if key != "" {
		header.Set(protocol.IdempotencyHeader, key)
	}

	resp, err := c.do(ctx, request{method: http.MethodPost, url: inboxURL, body: body, header: header})
	if err != nil {
		return nil, fmt.Errorf("%w: deliver to %s: %w", ErrMessageFailed, toAddr, err)
	}

	var receipt protocol.DeliveryReceipt
	if err := json.Unmarshal(resp.body, &receipt); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrMessageFailed, ErrMalformedResponse, err)
	}
	if receipt.MessageID == "" {
		return nil, fmt.Errorf("%w: %w: receipt has no message_id", ErrMessageFailed, ErrMalformedResponse)
	}

	c.logger.Debug("message delivered",
		"from", fromAddr.String(),
		"to", toAddr.String(),
		"message_id", receipt.MessageID,
		"duplicate", receipt.Duplicate,
	)

	return &SendResult{
		MessageID:      receipt.MessageID,
		IdempotencyKey: key,
		Duplicate:      receipt.Duplicate,
		InboxURL:       inboxURL,
	}, nil
}

// Publish posts content to the public feed of from's provider.
func (c *Client) Publish(ctx context.Context, from, content string, opts ...SendOption) (*SendResult, error) {
	fromAddr, err := address.Parse(from)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithMessageType(protocol.MessageTypePublic))
	return c.SendMessage(ctx, from, address.FeedAddress(fromAddr.Provider).String(), content, opts...)
}

// FetchInbox returns the last limit messages of raw's inbox, oldest first.
// limit <= 0 means protocol.DefaultInboxLimit.
func (c *Client) FetchInbox(ctx context.Context, raw, apiKey string, limit int) ([]protocol.StoredMessage, error) {
	addr, err := address.Parse(raw)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = protocol.DefaultInboxLimit
	}

	ep := resolver.ResolveProviderEndpoints(addr)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.do(ctx, request{
		method: http.MethodGet,
		url:    ep.InboxURL + "?limit=" + strconv.Itoa(limit),
		header: header,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch inbox of %s: %w", ErrMessageFailed, addr, err)
	}

	var page protocol.InboxPage
	if err := json.Unmarshal(resp.body, &page); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrMessageFailed, ErrMalformedResponse, err)
	}

	msgs := page.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	if msgs == nil {
		msgs = []protocol.StoredMessage{}
	}
	return msgs, nil
}

// Register creates raw on its provider and returns the issued API key.
func (c *Client) Register(ctx context.Context, raw, model string) (*protocol.RegisterResponse, error) {
	addr, err := address.Parse(raw)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		url:    resolver.BaseURL(addr.Provider) + protocol.PathRegister,
		body:   protocol.RegisterRequest{Address: addr.String(), Model: model},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrRegistrationFailed, addr, err)
	}

	var out protocol.RegisterResponse
	if err := json.Unmarshal(resp.body, &out); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", ErrRegistrationFailed, ErrMalformedResponse, err)
	}
	if out.APIKey == "" {
		return nil, fmt.Errorf("%w: %w: response has no api_key", ErrRegistrationFailed, ErrMalformedResponse)
	}
	return &out, nil
}

// ResolveProviderEndpoints parses raw and derives its provider endpoints
// without any network call.
func (c *Client) ResolveProviderEndpoints(raw string) (resolver.Endpoints, error) {
	ep, err := resolver.ResolveProviderEndpointsString(raw)
	if err != nil {
		return resolver.Endpoints{}, err
	}
	c.logger.Debug("derived provider endpoints",
		"provider", ep.Provider,
		"discovery_method", ep.DiscoveryMethod,
	)
	return ep, nil
}

// GetProviderInfo queries the optional provider info endpoint once. Any
// failure, including 404, yields (nil, false).
func (c *Client) GetProviderInfo(ctx context.Context, provider string) (*protocol.ProviderInfo, bool) {
	req := request{method: http.MethodGet, url: resolver.BaseURL(provider) + protocol.PathProviderInfo}
	resp, err := c.doOnce(ctx, req, nil)
	if err != nil {
		c.logger.Debug("provider info unavailable", "provider", provider, "error", err.Error())
		return nil, false
	}

	var info protocol.ProviderInfo
	if err := json.Unmarshal(resp.body, &info); err != nil {
		c.logger.Debug("provider info malformed", "provider", provider, "error", err.Error())
		return nil, false
	}
	return &info, true
}
