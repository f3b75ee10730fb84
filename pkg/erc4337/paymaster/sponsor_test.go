package paymaster

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEntryPoint = common.HexToAddress("0x5FF137D4b0FDCD49DcA30c7CF57E578a026d2789")

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "sdk-tests",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

type sponsorServer struct {
	server *httptest.Server

	mu        sync.Mutex
	authSeen  []string
	bodiesRaw [][]byte

	status int
	reply  sponsorResponse
}

func newSponsorServer(t *testing.T) *sponsorServer {
	ss := &sponsorServer{
		status: http.StatusOK,
		reply: sponsorResponse{
			PaymasterAndData: hexutil.Encode(bytes.Repeat([]byte{0xab}, PaymasterAndDataLength)),
		},
	}
	ss.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/paymaster/sponsor" {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)

		ss.mu.Lock()
		ss.authSeen = append(ss.authSeen, r.Header.Get("Authorization"))
		ss.bodiesRaw = append(ss.bodiesRaw, body)
		status, reply := ss.status, ss.reply
		ss.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(ss.server.Close)
	return ss
}

func (ss *sponsorServer) lastAuth() string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if len(ss.authSeen) == 0 {
		return ""
	}
	return ss.authSeen[len(ss.authSeen)-1]
}

func (ss *sponsorServer) lastBody() []byte {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if len(ss.bodiesRaw) == 0 {
		return nil
	}
	return ss.bodiesRaw[len(ss.bodiesRaw)-1]
}

func TestSponsorClientPaymasterAndData(t *testing.T) {
	ss := newSponsorServer(t)

	sourceCalls := 0
	token := signedToken(t, time.Now().Add(time.Hour))
	client := NewSponsorClient(ss.server.URL, testEntryPoint, func(context.Context) (string, error) {
		sourceCalls++
		return token, nil
	}, nil)

	op := sponsoredTestOp()
	data, err := client.PaymasterAndData(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xab}, PaymasterAndDataLength), data)
	assert.Equal(t, "Bearer "+token, ss.lastAuth())

	// The request carries the wire-form op plus the entrypoint.
	var sent struct {
		UserOperation map[string]string `json:"userOperation"`
		EntryPoint    string            `json:"entryPoint"`
	}
	require.NoError(t, json.Unmarshal(ss.lastBody(), &sent))
	assert.Equal(t, testEntryPoint.Hex(), sent.EntryPoint)
	assert.Equal(t, "0x5", sent.UserOperation["nonce"])

	// Second call reuses the session.
	_, err = client.PaymasterAndData(context.Background(), op)
	require.NoError(t, err)
	assert.Equal(t, 1, sourceCalls)
}

func TestSponsorClientRefreshesExpiredSession(t *testing.T) {
	ss := newSponsorServer(t)

	sourceCalls := 0
	expired := signedToken(t, time.Now().Add(-time.Hour))
	client := NewSponsorClient(ss.server.URL, testEntryPoint, func(context.Context) (string, error) {
		sourceCalls++
		return expired, nil
	}, nil)

	op := sponsoredTestOp()
	_, err := client.PaymasterAndData(context.Background(), op)
	require.NoError(t, err)
	_, err = client.PaymasterAndData(context.Background(), op)
	require.NoError(t, err)

	// The expired token forces a fresh fetch per call.
	assert.Equal(t, 2, sourceCalls)
}

func TestSponsorClientRejectsWrongLength(t *testing.T) {
	ss := newSponsorServer(t)
	ss.reply = sponsorResponse{PaymasterAndData: "0x1234"}

	client := NewSponsorClient(ss.server.URL, testEntryPoint, func(context.Context) (string, error) {
		return signedToken(t, time.Now().Add(time.Hour)), nil
	}, nil)

	_, err := client.PaymasterAndData(context.Background(), sponsoredTestOp())
	require.ErrorContains(t, err, "want 149")
}

func TestSponsorClientServerRejection(t *testing.T) {
	ss := newSponsorServer(t)
	ss.status = http.StatusForbidden
	ss.reply = sponsorResponse{Error: "quota exceeded"}

	client := NewSponsorClient(ss.server.URL, testEntryPoint, func(context.Context) (string, error) {
		return signedToken(t, time.Now().Add(time.Hour)), nil
	}, nil)

	_, err := client.PaymasterAndData(context.Background(), sponsoredTestOp())
	require.ErrorContains(t, err, "sponsor rejected the operation")
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(45 * time.Minute).Truncate(time.Second)
	assert.WithinDuration(t, exp, tokenExpiry(signedToken(t, exp)), time.Second)

	assert.True(t, tokenExpiry("not-a-jwt").IsZero())

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)
	assert.True(t, tokenExpiry(noExp).IsZero())
}
