package paymaster

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/IncentivNetwork/ui-sdk/pkg/erc4337/userop"
	"github.com/IncentivNetwork/ui-sdk/pkg/logger"
)

const (
	sponsorRequestTimeout = 30 * time.Second

	// A session is refreshed when its exp claim is this close.
	tokenRefreshLeeway = 30 * time.Second
)

// TokenSource produces a sponsorship session token. Called once up front and
// again whenever the current token is about to expire.
type TokenSource func(ctx context.Context) (string, error)

// SponsorClient asks a hosted sponsorship service for paymasterAndData. The
// service runs the same verifying-paymaster scheme server-side, so the
// returned blob has the standard 149-byte layout.
type SponsorClient struct {
	http       *resty.Client
	entryPoint common.Address
	source     TokenSource
	logger     logger.Logger

	mu     sync.Mutex
	token  string
	expiry time.Time
}

type sponsorRequest struct {
	UserOperation *userop.UserOperation `json:"userOperation"`
	EntryPoint    string                `json:"entryPoint"`
}

type sponsorResponse struct {
	PaymasterAndData string `json:"paymasterAndData"`
	Error            string `json:"error,omitempty"`
}

func NewSponsorClient(baseURL string, entryPoint common.Address, source TokenSource, lg logger.Logger) *SponsorClient {
	return &SponsorClient{
		http:       resty.New().SetBaseURL(baseURL).SetTimeout(sponsorRequestTimeout),
		entryPoint: entryPoint,
		source:     source,
		logger:     logger.EnsureLogger(lg),
	}
}

func (c *SponsorClient) Placeholder() []byte {
	return bytes.Repeat([]byte{0xff}, PaymasterAndDataLength)
}

// PaymasterAndData posts the wire-form op and returns the service's
// sponsorship blob. Gas fields must be final; the service signs over them.
func (c *SponsorClient) PaymasterAndData(ctx context.Context, op *userop.UserOperation) ([]byte, error) {
	token, err := c.sessionToken(ctx)
	if err != nil {
		return nil, err
	}

	var out sponsorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(&sponsorRequest{UserOperation: op, EntryPoint: c.entryPoint.Hex()}).
		SetResult(&out).
		Post("/v1/paymaster/sponsor")
	if err != nil {
		return nil, fmt.Errorf("sponsor request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("sponsor rejected the operation: %s: %s", resp.Status(), resp.String())
	}
	if out.Error != "" {
		return nil, fmt.Errorf("sponsor rejected the operation: %s", out.Error)
	}

	data, err := hexutil.Decode(out.PaymasterAndData)
	if err != nil {
		return nil, fmt.Errorf("sponsor returned malformed paymasterAndData %q: %w", out.PaymasterAndData, err)
	}
	if len(data) != PaymasterAndDataLength {
		return nil, fmt.Errorf("sponsor returned %d bytes of paymasterAndData, want %d", len(data), PaymasterAndDataLength)
	}

	c.logger.Debug("sponsorship granted", "sender", op.Sender.Hex())
	return data, nil
}

func (c *SponsorClient) sessionToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && (c.expiry.IsZero() || time.Until(c.expiry) > tokenRefreshLeeway) {
		return c.token, nil
	}

	if c.source == nil {
		return "", fmt.Errorf("sponsor session expired and no token source is configured")
	}
	token, err := c.source(ctx)
	if err != nil {
		return "", fmt.Errorf("sponsor session: %w", err)
	}

	c.token = token
	c.expiry = tokenExpiry(token)
	c.logger.Debug("sponsor session refreshed", "expires_at", c.expiry)
	return token, nil
}

// tokenExpiry reads the exp claim without verifying the signature. The
// server verifies; the client only schedules refreshes. Zero time means the
// token never expires client-side.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
