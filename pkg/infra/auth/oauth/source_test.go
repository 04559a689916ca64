package oauth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokenClient struct {
	calls  atomic.Int32
	tokens []Token
	err    error
	delay  time.Duration
}

func (f *fakeTokenClient) GetToken(context.Context, TokenRequest) (Token, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return Token{}, f.err
	}
	idx := int(n) - 1
	if idx >= len(f.tokens) {
		idx = len(f.tokens) - 1
	}
	return f.tokens[idx], nil
}

func TestCachedSource_ReusesValidToken(t *testing.T) {
	now := time.Now()
	client := &fakeTokenClient{tokens: []Token{{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}}}
	source := NewCachedSource(client, TokenRequest{})

	for i := 0; i < 3; i++ {
		tok, err := source.Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "a", tok)
	}
	assert.Equal(t, int32(1), client.calls.Load())
}

func TestCachedSource_RefreshesWithinSkew(t *testing.T) {
	now := time.Now()
	client := &fakeTokenClient{tokens: []Token{
		{AccessToken: "a", ExpiresAt: now.Add(10 * time.Second)},
		{AccessToken: "b", ExpiresAt: now.Add(time.Hour)},
	}}
	source := NewCachedSource(client, TokenRequest{})
	source.now = func() time.Time { return now }

	first, err := source.Token(context.Background())
	require.NoError(t, err)
	second, err := source.Token(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "a", first)
	assert.Equal(t, "b", second)
	assert.Equal(t, int32(2), client.calls.Load())
}

func TestCachedSource_TokenWithoutExpiryIsSingleUse(t *testing.T) {
	client := &fakeTokenClient{tokens: []Token{{AccessToken: "a"}}}
	source := NewCachedSource(client, TokenRequest{})

	_, _ = source.Token(context.Background())
	_, _ = source.Token(context.Background())

	assert.Equal(t, int32(2), client.calls.Load())
}

func TestCachedSource_Invalidate(t *testing.T) {
	client := &fakeTokenClient{tokens: []Token{
		{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)},
		{AccessToken: "b", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	source := NewCachedSource(client, TokenRequest{})

	_, _ = source.Token(context.Background())
	source.Invalidate()
	tok, err := source.Token(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "b", tok)
}

func TestCachedSource_Error(t *testing.T) {
	client := &fakeTokenClient{err: errors.New("auth down")}
	source := NewCachedSource(client, TokenRequest{})

	_, err := source.Token(context.Background())

	assert.EqualError(t, err, "auth down")
}

func TestCachedSource_ConcurrentRefreshCollapses(t *testing.T) {
	client := &fakeTokenClient{
		tokens: []Token{{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)}},
		delay:  50 * time.Millisecond,
	}
	source := NewCachedSource(client, TokenRequest{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := source.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "a", tok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), client.calls.Load())
}

type blockingTokenClient struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
	ctxErr  atomic.Value
}

func (b *blockingTokenClient) GetToken(ctx context.Context, _ TokenRequest) (Token, error) {
	b.calls.Add(1)
	close(b.started)
	<-b.release
	if err := ctx.Err(); err != nil {
		b.ctxErr.Store(err)
		return Token{}, err
	}
	return Token{AccessToken: "shared", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func TestCachedSource_CancelledLeaderDoesNotFailWaiters(t *testing.T) {
	client := &blockingTokenClient{started: make(chan struct{}), release: make(chan struct{})}
	source := NewCachedSource(client, TokenRequest{})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := source.Token(leaderCtx)
		leaderErr <- err
	}()
	<-client.started

	type result struct {
		tok string
		err error
	}
	waiter := make(chan result, 1)
	go func() {
		tok, err := source.Token(context.Background())
		waiter <- result{tok, err}
	}()

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	close(client.release)

	res := <-waiter
	require.NoError(t, res.err)
	assert.Equal(t, "shared", res.tok)
	assert.Nil(t, client.ctxErr.Load())
	assert.Equal(t, int32(1), client.calls.Load())
}
