package stats_test

import (
	"context"
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"infiya.app/relay/internal/stats"
)

const snapshot = `{
	"intent": "news",
	"processing_stats": {
		"total_duration": 2500000000,
		"api_calls_count": 7,
		"articles_filtered": 4,
		"videos_filtered": 2
	},
	"articles": [{"title": "a"}],
	"videos": {"items": []}
}`

var _ = Describe("Decode", func() {
	It("extracts the completion statistics", func() {
		s, err := stats.Decode([]byte(snapshot))
		Expect(err).NotTo(HaveOccurred())
		Expect(*s.Intent).To(Equal("news"))
		Expect(s.TotalDurationMS).To(Equal(int64(2500)))
		Expect(s.APICallsCount).To(Equal(int64(7)))
		Expect(s.ArticlesFound).To(Equal(int64(4)))
		Expect(s.VideosFound).To(Equal(int64(2)))
		Expect(s.Articles).To(MatchJSON(`[{"title": "a"}]`))
		Expect(s.Videos).To(MatchJSON(`{"items": []}`))
	})

	It("defaults missing counters to zero", func() {
		s, err := stats.Decode([]byte(`{"intent": null}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Intent).To(BeNil())
		Expect(s.TotalDurationMS).To(BeZero())
		Expect(s.Articles).To(BeNil())
	})

	It("truncates nanoseconds to whole milliseconds", func() {
		s, err := stats.Decode([]byte(`{"processing_stats": {"total_duration": 1999999}}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.TotalDurationMS).To(Equal(int64(1)))
	})

	It("fails on invalid JSON", func() {
		_, err := stats.Decode([]byte(`{not json`))
		Expect(err).To(HaveOccurred())
	})

	It("serializes with the client-facing field names", func() {
		s, _ := stats.Decode([]byte(snapshot))
		out, err := json.Marshal(s)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(out)).To(ContainSubstring(`"total_duration_ms":2500`))
		Expect(string(out)).To(ContainSubstring(`"articles_found":4`))
	})
})

var _ = Describe("Enricher against Redis", func() {
	var (
		ctx      context.Context
		client   *redis.Client
		enricher *stats.Enricher
	)

	BeforeEach(func() {
		url := os.Getenv("TEST_REDIS_URL")
		if url == "" {
			Skip("TEST_REDIS_URL not set")
		}
		opts, err := redis.ParseURL(url)
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
		client = redis.NewClient(opts)
		enricher = stats.NewEnricher(client, "workflow:%s:state")
	})

	It("returns nil for an absent snapshot", func() {
		s, err := enricher.Resolve(ctx, "workflow_"+uuid.NewString())
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeNil())
	})

	It("resolves a stored snapshot", func() {
		id := "workflow_" + uuid.NewString()
		key := "workflow:" + id + ":state"
		Expect(client.Set(ctx, key, snapshot, 0).Err()).To(Succeed())
		DeferCleanup(func() { client.Del(ctx, key) })

		s, err := enricher.Resolve(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.APICallsCount).To(Equal(int64(7)))
	})
})
