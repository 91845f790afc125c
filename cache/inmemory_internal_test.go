package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type InMemoryInternalSuite struct {
	suite.Suite
}

func TestInMemoryInternalSuite(t *testing.T) {
	suite.Run(t, new(InMemoryInternalSuite))
}

func (s *InMemoryInternalSuite) TestExpireSupportsAndCleanup() {
	ctx := context.Background()
	raw := NewInMemoryCache()
	s.T().Cleanup(func() { _ = raw.Close() })

	mem, ok := raw.(*InMemoryCache)
	s.Require().True(ok)

	s.True(mem.SupportsPerKeyTTL())

	s.NoError(mem.Set(ctx, "expire_key", []byte("value"), 0))
	s.NoError(mem.Expire(ctx, "expire_key", 50*time.Millisecond))
	time.Sleep(80 * time.Millisecond)
	_, found, err := mem.Get(ctx, "expire_key")
	s.NoError(err)
	s.False(found)

	mem.items.Store("stale", &inMemoryCacheItem{
		value:      []byte("x"),
		expiration: time.Now().Add(-time.Second),
	})
	mem.cleanup()
	_, present := mem.items.Load("stale")
	s.False(present)
}

func (s *InMemoryInternalSuite) TestExpireSurvivesConcurrentIncrements() {
	ctx := context.Background()
	raw := NewInMemoryCache()
	s.T().Cleanup(func() { _ = raw.Close() })

	mem, ok := raw.(*InMemoryCache)
	s.Require().True(ok)

	for round := range 50 {
		key := fmt.Sprintf("ratelimit:203.0.113.1:%d", round)
		_, err := mem.Increment(ctx, key, 1)
		s.Require().NoError(err)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 25 {
					_, _ = mem.Increment(ctx, key, 1)
				}
			}()
		}
		s.Require().NoError(mem.Expire(ctx, key, time.Minute))
		wg.Wait()

		value, found := mem.items.Load(key)
		s.Require().True(found)
		item, isItem := value.(*inMemoryCacheItem)
		s.Require().True(isItem)
		s.False(item.expiration.IsZero(), "window %s lost its ttl", key)
	}
}

func (s *InMemoryInternalSuite) TestCloseIsIdempotent() {
	raw := NewInMemoryCache()
	s.NoError(raw.Close())
	s.NoError(raw.Close())
}
