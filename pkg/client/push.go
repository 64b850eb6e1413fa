package client

import "context"

// PushSubscription is the platform-produced subscription handed to the
// server so it can deliver pushes. Key exchange happens outside this
// package; the subscription arrives here already serialized.
type PushSubscription struct {
	Endpoint       string               `json:"endpoint"`
	ExpirationTime *int64               `json:"expirationTime"`
	Keys           PushSubscriptionKeys `json:"keys"`
}

// PushSubscriptionKeys carries the encryption keys of a subscription
type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// RegisterResponse is the server acknowledgement of a registration
type RegisterResponse struct {
	ID string `json:"id"`
}

// RegisterPushSubscription registers a push subscription with the server.
func (c *Client) RegisterPushSubscription(ctx context.Context, sub PushSubscription) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.doRequest(ctx, "POST", "/api/register", sub, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
