package oauth

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultExpirySkew is how long before expiry a cached token stops being reused.
const DefaultExpirySkew = 30 * time.Second

// CachedSource hands out a cached token while it is valid and refreshes it
// otherwise. Concurrent refreshes collapse into a single request.
type CachedSource struct {
	client TokenClient
	req    TokenRequest
	skew   time.Duration
	now    func() time.Time

	current atomic.Pointer[Token]
	group   singleflight.Group
}

func NewCachedSource(client TokenClient, req TokenRequest) *CachedSource {
	return &CachedSource{
		client: client,
		req:    req,
		skew:   DefaultExpirySkew,
		now:    time.Now,
	}
}

func (s *CachedSource) Token(ctx context.Context) (string, error) {
	if t := s.current.Load(); t != nil && t.Valid(s.now(), s.skew) {
		return t.AccessToken, nil
	}

	// The shared refresh outlives any single caller; the token client's own
	// timeout bounds it.
	refresh := context.WithoutCancel(ctx)
	ch := s.group.DoChan("token", func() (interface{}, error) {
		if t := s.current.Load(); t != nil && t.Valid(s.now(), s.skew) {
			return t.AccessToken, nil
		}
		t, err := s.client.GetToken(refresh, s.req)
		if err != nil {
			return "", err
		}
		s.current.Store(&t)
		return t.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token, e.g. after the provider answered 401.
func (s *CachedSource) Invalidate() {
	s.current.Store(nil)
}
