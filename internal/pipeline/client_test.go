package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"infiya.app/relay/internal/model"
	"infiya.app/relay/internal/pipeline"
)

var _ = Describe("Client", func() {
	var (
		ctx context.Context
		req pipeline.SubmitRequest
	)

	BeforeEach(func() {
		ctx = context.Background()
		req = pipeline.SubmitRequest{
			UserID:      "user-1",
			Query:       "What happened in tech today?",
			WorkflowID:  "workflow_abc",
			Preferences: model.DefaultPreferences(),
		}
	})

	It("posts the workflow payload", func() {
		var (
			gotPath string
			gotBody map[string]any
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			Expect(r.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(json.NewDecoder(r.Body).Decode(&gotBody)).To(Succeed())
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"accepted"}`))
		}))
		DeferCleanup(srv.Close)

		client := pipeline.NewClient(srv.URL+"/", time.Second)
		Expect(client.Submit(ctx, req)).To(Succeed())

		Expect(gotPath).To(Equal("/api/v1/workflows/execute"))
		Expect(gotBody).To(HaveKeyWithValue("user_id", "user-1"))
		Expect(gotBody).To(HaveKeyWithValue("workflow_id", "workflow_abc"))
		Expect(gotBody).To(HaveKeyWithValue("query", "What happened in tech today?"))
		prefs, ok := gotBody["user_preferences"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(prefs).To(HaveKeyWithValue("news_personality", "friendly-explainer"))
		Expect(prefs).To(HaveKeyWithValue("content_length", "brief"))
		Expect(prefs).To(HaveKey("favourite_topics"))
	})

	It("returns a SubmitError for non-2xx responses", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
		}))
		DeferCleanup(srv.Close)

		err := pipeline.NewClient(srv.URL, time.Second).Submit(ctx, req)

		var submitErr *pipeline.SubmitError
		Expect(errors.As(err, &submitErr)).To(BeTrue())
		Expect(submitErr.StatusCode).To(Equal(http.StatusServiceUnavailable))
		Expect(len(submitErr.Body)).To(BeNumerically("<=", 512))
		Expect(err.Error()).To(HavePrefix("AI Pipeline returned 503"))
	})

	It("fails when the pipeline is unreachable", func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		err := pipeline.NewClient(url, time.Second).Submit(ctx, req)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("calling AI pipeline"))
	})
})
