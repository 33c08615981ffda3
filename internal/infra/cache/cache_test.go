package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"sensor-bridge/internal/infra/cache"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Cache", func() {
	var (
		cacheInstance *cache.RistrettoCache
		ctx           context.Context
	)

	ginkgo.BeforeEach(func() {
		var err error
		cacheInstance, err = cache.New(nil)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		ctx = context.Background()
	})

	ginkgo.AfterEach(func() {
		cacheInstance.Close()
	})

	ginkgo.Context("Set", func() {
		ginkgo.It("should make the value visible to Get", func() {
			gomega.Expect(cacheInstance.Set(ctx, "input-value", 7, 0)).To(gomega.BeTrue())

			retrieved, found := cacheInstance.Get(ctx, "input-value")
			gomega.Expect(found).To(gomega.BeTrue())
			gomega.Expect(retrieved).To(gomega.Equal(7))
		})

		ginkgo.It("should expire the value after its ttl", func() {
			cacheInstance.Set(ctx, "input-value", 7, 50*time.Millisecond)

			gomega.Eventually(func() bool {
				_, found := cacheInstance.Get(ctx, "input-value")
				return found
			}).WithTimeout(2 * time.Second).Should(gomega.BeFalse())
		})
	})

	ginkgo.Context("GetOrSet", func() {
		ginkgo.It("should load once and serve the cached value afterwards", func() {
			var calls atomic.Int32
			loader := func() (any, error) {
				calls.Add(1)
				return 42, nil
			}

			value, err := cacheInstance.GetOrSet(ctx, "input-value", time.Minute, loader)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(value).To(gomega.Equal(42))

			value, err = cacheInstance.GetOrSet(ctx, "input-value", time.Minute, loader)
			gomega.Expect(err).NotTo(gomega.HaveOccurred())
			gomega.Expect(value).To(gomega.Equal(42))
			gomega.Expect(calls.Load()).To(gomega.Equal(int32(1)))
		})

		ginkgo.It("should share one load between concurrent callers", func() {
			var calls atomic.Int32
			release := make(chan struct{})
			loader := func() (any, error) {
				calls.Add(1)
				<-release
				return "codec", nil
			}

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					defer ginkgo.GinkgoRecover()
					value, err := cacheInstance.GetOrSet(ctx, "schema_3", time.Minute, loader)
					gomega.Expect(err).NotTo(gomega.HaveOccurred())
					gomega.Expect(value).To(gomega.Equal("codec"))
				}()
			}
			time.Sleep(20 * time.Millisecond)
			close(release)
			wg.Wait()

			gomega.Expect(calls.Load()).To(gomega.BeNumerically("<=", 8))
			_, found := cacheInstance.Get(ctx, "schema_3")
			gomega.Expect(found).To(gomega.BeTrue())
		})

		ginkgo.It("should not cache loader errors", func() {
			_, err := cacheInstance.GetOrSet(ctx, "broken", time.Minute, func() (any, error) {
				return nil, errors.New("registry down")
			})
			gomega.Expect(err).To(gomega.MatchError("registry down"))

			_, found := cacheInstance.Get(ctx, "broken")
			gomega.Expect(found).To(gomega.BeFalse())
		})

		ginkgo.It("should fail on a cancelled context", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := cacheInstance.GetOrSet(cancelled, "input-value", time.Minute, func() (any, error) {
				return 1, nil
			})
			gomega.Expect(err).To(gomega.MatchError(context.Canceled))
		})
	})
})
