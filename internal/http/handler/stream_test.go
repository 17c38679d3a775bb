package handler_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"infiya.app/relay/internal/http/handler"
	"infiya.app/relay/internal/http/middleware"
	"infiya.app/relay/internal/relay"
)

var _ = Describe("StreamHandler", func() {
	var (
		registry *relay.Registry
		server   *httptest.Server
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		registry = relay.NewRegistry(16)
		h := handler.NewStreamHandler(registry, fixedCounter(2), time.Hour, nil, false)

		router := gin.New()
		router.GET("/health", h.Health)
		g := router.Group("", middleware.Identity())
		g.GET("/stream", h.SSE)
		g.GET("/ws", h.WebSocket)

		server = httptest.NewServer(router)
		DeferCleanup(server.Close)
	})

	Describe("SSE", func() {
		readFrame := func(r *bufio.Reader) relay.Frame {
			var f relay.Frame
			for {
				line, err := r.ReadString('\n')
				Expect(err).NotTo(HaveOccurred())
				line = strings.TrimRight(line, "\n")
				if data, ok := strings.CutPrefix(line, "data: "); ok {
					Expect(json.Unmarshal([]byte(data), &f)).To(Succeed())
					continue
				}
				if line == "" && f.Type != "" {
					return f
				}
			}
		}

		It("sends connection_established then published frames", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/stream?user_id=user-1", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

			r := bufio.NewReader(resp.Body)
			first := readFrame(r)
			Expect(first.Type).To(Equal(relay.FrameConnectionEstablished))
			Expect(first.UserID).To(Equal("user-1"))

			Expect(registry.Publish(ctx, "user-1", relay.PollingError("wf-1", "stalled"))).To(BeTrue())

			next := readFrame(r)
			Expect(next.Type).To(Equal(relay.FramePollingError))
			Expect(next.WorkflowID).To(Equal("wf-1"))
		})

		It("detaches the channel when the client goes away", func() {
			ctx, cancel := context.WithCancel(context.Background())

			req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/stream?user_id=user-2", nil)
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			readFrame(bufio.NewReader(resp.Body))
			Expect(registry.Count()).To(Equal(1))

			cancel()
			resp.Body.Close()

			Eventually(registry.Count).Should(Equal(0))
		})

		It("requires an identity", func() {
			resp, err := http.Get(server.URL + "/stream")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("WebSocket", func() {
		It("streams frames as JSON messages", func() {
			url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?user_id=user-3"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()

			var f relay.Frame
			Expect(conn.ReadJSON(&f)).To(Succeed())
			Expect(f.Type).To(Equal(relay.FrameConnectionEstablished))

			Expect(registry.Publish(context.Background(), "user-3", relay.ConnectionError("test"))).To(BeTrue())

			Expect(conn.ReadJSON(&f)).To(Succeed())
			Expect(f.Type).To(Equal(relay.FrameConnectionError))
		})

		It("releases the channel once the client closes", func() {
			url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?user_id=user-4"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			Expect(err).NotTo(HaveOccurred())

			var f relay.Frame
			Expect(conn.ReadJSON(&f)).To(Succeed())
			Expect(registry.Count()).To(Equal(1))

			Expect(conn.Close()).To(Succeed())

			Eventually(registry.Count).Should(Equal(0))
		})
	})

	It("reports active connections and running workflows", func() {
		resp, err := http.Get(server.URL + "/health")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		var body map[string]any
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		Expect(body["status"]).To(Equal("healthy"))
		Expect(body["active_connections"]).To(BeEquivalentTo(0))
		Expect(body["running_workflows"]).To(BeEquivalentTo(2))
	})
})
