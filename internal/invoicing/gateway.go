package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoPayableAddress   = errors.New("no payable address for payee")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// PaymentRequestDetails is what the external gateway resolves a payee and
// amount into: an opaque payable request string and its expiry.
type PaymentRequestDetails struct {
	PaymentRequest string
	ExpiresAt      time.Time
}

// Gateway turns (payee, amount) into a payable request. Implementations may
// fail per payee; the orchestrator decides which failures are fatal.
type Gateway interface {
	FetchInvoice(ctx context.Context, payeePubkey string, amountSats int64, description, idempotencyKey string) (PaymentRequestDetails, error)
}

// HTTPGateway resolves invoices through a lightning address/LNURL-pay style
// HTTP service.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type invoiceResponse struct {
	PaymentRequest string `json:"payment_request"`
	ExpirySeconds  int64  `json:"expiry"`
	Error          string `json:"error,omitempty"`
}

func (g *HTTPGateway) FetchInvoice(ctx context.Context, payeePubkey string, amountSats int64, description, idempotencyKey string) (PaymentRequestDetails, error) {
	u, err := url.Parse(g.baseURL + "/invoice/" + payeePubkey)
	if err != nil {
		return PaymentRequestDetails{}, err
	}
	values := url.Values{}
	values.Set("amount", strconv.FormatInt(amountSats, 10))
	values.Set("comment", description)
	u.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return PaymentRequestDetails{}, err
	}
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return PaymentRequestDetails{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return PaymentRequestDetails{}, ErrNoPayableAddress
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		msg := strings.TrimSpace(string(body))
		if msg != "" {
			return PaymentRequestDetails{}, fmt.Errorf("gateway http status %d: %s", resp.StatusCode, msg)
		}
		return PaymentRequestDetails{}, fmt.Errorf("gateway http status %d", resp.StatusCode)
	}

	var out invoiceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return PaymentRequestDetails{}, err
	}
	if out.Error != "" {
		return PaymentRequestDetails{}, errors.New(out.Error)
	}
	if out.PaymentRequest == "" {
		return PaymentRequestDetails{}, ErrNoPayableAddress
	}

	expiry := out.ExpirySeconds
	if expiry <= 0 {
		expiry = 3600
	}
	return PaymentRequestDetails{
		PaymentRequest: out.PaymentRequest,
		ExpiresAt:      time.Now().UTC().Add(time.Duration(expiry) * time.Second),
	}, nil
}
