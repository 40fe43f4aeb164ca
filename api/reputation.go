package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoIdentity is returned when the identity provider has no usable user for an
// address.
var ErrNoIdentity = errors.New("no identity")

// DefaultLookupTimeout bounds each identity lookup.
const DefaultLookupTimeout = 60 * time.Second

// Identity is the user record returned by the identity provider.
type Identity struct {
	Address         string `json:"address"`
	TwitterUsername string `json:"twitterUsername"`
	TwitterName     string `json:"twitterName"`
	TwitterUserID   string `json:"twitterUserId"`
	TwitterPfpURL   string `json:"twitterPfpUrl"`
}

// IdentityClient looks up the social identity linked to a wallet.
type IdentityClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewIdentityClient creates a client for baseURL (e.g. https://prod-api.kosetto.com).
func NewIdentityClient(baseURL string, timeout time.Duration) *IdentityClient {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &IdentityClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LookupUser fetches the identity for a wallet address.
func (c *IdentityClient) LookupUser(ctx context.Context, addr common.Address) (*Identity, error) {
	url := fmt.Sprintf("%s/users/%s", c.baseURL, strings.ToLower(addr.Hex()))

	body, err := getBody(ctx, c.httpClient, url)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}

	var user Identity
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("identity: decode: %w", err)
	}
	if user.TwitterUserID == "" {
		return nil, ErrNoIdentity
	}
	return &user, nil
}

// FollowersClient queries the follower-count service.
type FollowersClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewFollowersClient creates a client for baseURL (e.g. http://127.0.0.1:8000).
func NewFollowersClient(baseURL string, timeout time.Duration) *FollowersClient {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	return &FollowersClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FollowerCount returns the follower count for an external user id. The service
// answers with a bare integer.
func (c *FollowersClient) FollowerCount(ctx context.Context, userID string) (uint64, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, userID)

	body, err := getBody(ctx, c.httpClient, url)
	if err != nil {
		return 0, fmt.Errorf("followers: %w", err)
	}

	text := strings.Trim(strings.TrimSpace(string(body)), `"`)
	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("followers: parse %q: %w", text, err)
	}
	return n, nil
}

func getBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s returned %d", url, resp.StatusCode)
	}
	return body, nil
}
