package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"medbook/pkg/model"
)

type BookingClient struct {
	httpClient *HttpClient
}

func NewBookingClient(baseURL string) *BookingClient {
	return &BookingClient{
		httpClient: NewHttpClient(baseURL),
	}
}

func (c *BookingClient) HTTP() *HttpClient {
	return c.httpClient
}

func (c *BookingClient) Submit(ctx context.Context, body any) (*Response, error) {
	return c.httpClient.POST(ctx, "/book", body)
}

func (c *BookingClient) SubmitWithIdempotencyKey(ctx context.Context, body any, key string) (*Response, error) {
	return c.httpClient.POSTWithHeaders(ctx, "/book", body, map[string]string{"Idempotency-Key": key})
}

func (c *BookingClient) Get(ctx context.Context, id string) (*Response, error) {
	return c.httpClient.GET(ctx, "/booking/"+url.PathEscape(id))
}

func (c *BookingClient) Health(ctx context.Context) (*Response, error) {
	return c.httpClient.GET(ctx, "/health")
}

// WaitForDecision polls the booking until it leaves pending or ctx expires.
func (c *BookingClient) WaitForDecision(ctx context.Context, id string, interval time.Duration) (*model.Booking, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		resp, err := c.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, GetErrorMessage(resp))
		}

		var booking model.Booking
		if err := resp.DecodeJSON(&booking); err != nil {
			return nil, fmt.Errorf("failed to decode booking: %w", err)
		}
		if booking.Status.IsTerminal() {
			return &booking, nil
		}

		select {
		case <-ctx.Done():
			return &booking, fmt.Errorf("booking %s still %s: %w", id, booking.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}
