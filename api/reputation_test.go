package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityClient_LookupUser(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000Ab")

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"id":7,"address":"0xab","twitterUsername":"alice","twitterName":"Alice","twitterUserId":"12345"}`)
	}))
	defer srv.Close()

	c := NewIdentityClient(srv.URL+"/", time.Second)
	user, err := c.LookupUser(context.Background(), addr)
	require.NoError(t, err)

	assert.Equal(t, "/users/0x00000000000000000000000000000000000000ab", gotPath)
	assert.Equal(t, "alice", user.TwitterUsername)
	assert.Equal(t, "12345", user.TwitterUserID)
}

func TestIdentityClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"not found", http.StatusNotFound, `{"message":"Address/User not found."}`},
		{"server error", http.StatusInternalServerError, ``},
		{"malformed", http.StatusOK, `{"twitterUsername":`},
		{"no user id", http.StatusOK, `{"twitterUsername":"bob"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewIdentityClient(srv.URL, time.Second).LookupUser(context.Background(), common.Address{})
			assert.Error(t, err)
		})
	}
}

func TestIdentityClient_NoUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"twitterUsername":"bob"}`)
	}))
	defer srv.Close()

	_, err := NewIdentityClient(srv.URL, time.Second).LookupUser(context.Background(), common.Address{})
	assert.True(t, errors.Is(err, ErrNoIdentity))
}

func TestFollowersClient_FollowerCount(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    uint64
		wantErr bool
	}{
		{"plain integer", http.StatusOK, "2000000", 2_000_000, false},
		{"json number with newline", http.StatusOK, "1500\n", 1500, false},
		{"quoted", http.StatusOK, `"42"`, 42, false},
		{"garbage", http.StatusOK, "lots", 0, true},
		{"server error", http.StatusInternalServerError, "0", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			n, err := NewFollowersClient(srv.URL, time.Second).FollowerCount(context.Background(), "12345")
			assert.Equal(t, "/12345", gotPath)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}
