package service_test

import (
	"context"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"infiya.app/relay/common/id"
	"infiya.app/relay/internal/model"
	"infiya.app/relay/internal/pipeline"
	"infiya.app/relay/internal/relay"
	"infiya.app/relay/internal/service"
)

var _ = Describe("ChatService", func() {
	var (
		ctx       context.Context
		chatStore *memoryChatStore
		prefs     *mockPreferencesStore
		publisher *mockPublisher
		starter   *mockStarter
		submitter *mockSubmitter
		svc       service.ChatService
	)

	BeforeEach(func() {
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())

		chatStore = &memoryChatStore{}
		prefs = &mockPreferencesStore{}
		publisher = &mockPublisher{}
		starter = &mockStarter{}
		submitter = &mockSubmitter{}
		tx := &mockTxRunner{stores: &mockStoreProvider{chat: chatStore, prefs: prefs}}
		svc = service.NewChatService(tx, publisher, starter, submitter, 2000)
	})

	drain := func() {
		dctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		Expect(svc.Drain(dctx)).To(Succeed())
	}

	Describe("Send", func() {
		It("stores the message, starts the consumer and submits to the pipeline", func() {
			res, err := svc.Send(ctx, "user-1", "  What is new in AI?  ")
			Expect(err).NotTo(HaveOccurred())
			drain()

			Expect(res.Status).To(Equal("processing"))
			Expect(res.WorkflowID).To(HavePrefix("workflow_"))
			Expect(res.Message.ID).NotTo(BeZero())
			Expect(res.Message.Role).To(Equal(model.RoleUser))
			Expect(res.Message.Content).To(Equal("What is new in AI?"))
			Expect(*res.Message.WorkflowID).To(Equal(res.WorkflowID))

			history, _ := chatStore.History(ctx, "user-1", nil)
			Expect(history).To(HaveLen(1))

			Expect(starter.started).To(Equal([]string{res.WorkflowID}))

			frames := publisher.all()
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Type).To(Equal(relay.FrameMessageReceived))
			Expect(frames[0].WorkflowID).To(Equal(res.WorkflowID))

			reqs := submitter.all()
			Expect(reqs).To(HaveLen(1))
			Expect(reqs[0].Query).To(Equal("What is new in AI?"))
			Expect(reqs[0].UserID).To(Equal("user-1"))
			Expect(reqs[0].Preferences).To(Equal(model.DefaultPreferences()))
		})

		It("sends the stored preferences", func() {
			stored := model.NormalizePreferences("ai-analyst", "detailed", []string{"tech"})
			prefs.getFn = func(context.Context, string) (*model.Preferences, error) {
				return &stored, nil
			}

			_, err := svc.Send(ctx, "user-1", "hello")
			Expect(err).NotTo(HaveOccurred())
			drain()

			Expect(submitter.all()[0].Preferences).To(Equal(stored))
		})

		It("generates a distinct workflow per message", func() {
			a, err := svc.Send(ctx, "user-1", "one")
			Expect(err).NotTo(HaveOccurred())
			b, err := svc.Send(ctx, "user-1", "two")
			Expect(err).NotTo(HaveOccurred())
			drain()

			Expect(a.WorkflowID).NotTo(Equal(b.WorkflowID))
		})

		DescribeTable("rejects invalid messages without side effects",
			func(text string, want error) {
				_, err := svc.Send(ctx, "user-1", text)
				Expect(err).To(MatchError(want))
				Expect(publisher.all()).To(BeEmpty())
				Expect(submitter.all()).To(BeEmpty())
			},
			Entry("empty", "", service.ErrEmptyMessage),
			Entry("whitespace", "   \n\t", service.ErrEmptyMessage),
			Entry("too long", strings.Repeat("é", 2001), service.ErrMessageTooLong),
		)

		It("accepts a message of exactly the maximum length", func() {
			_, err := svc.Send(ctx, "user-1", strings.Repeat("a", 2000))
			Expect(err).NotTo(HaveOccurred())
			drain()
		})

		It("reports a pipeline rejection as a single workflow_error frame", func() {
			submitter.submitFn = func(context.Context, pipeline.SubmitRequest) error {
				return &pipeline.SubmitError{StatusCode: 500, Body: "internal"}
			}

			res, err := svc.Send(ctx, "user-1", "hello")
			Expect(err).NotTo(HaveOccurred())
			drain()

			frames := publisher.all()
			Expect(frames).To(HaveLen(2))
			Expect(frames[1].Type).To(Equal(relay.FrameWorkflowError))
			Expect(frames[1].WorkflowID).To(Equal(res.WorkflowID))
			Expect(frames[1].Error).To(Equal("Failed to start AI processing: AI Pipeline returned 500: internal"))
			Expect(starter.abandonedIDs()).To(Equal([]string{res.WorkflowID}))
			Expect(submitter.all()).To(HaveLen(1))
		})

		It("fails when the preferences store errors", func() {
			prefs.getFn = func(context.Context, string) (*model.Preferences, error) {
				return nil, errors.New("db down")
			}

			_, err := svc.Send(ctx, "user-1", "hello")
			Expect(err).To(MatchError(ContainSubstring("db down")))
			history, _ := chatStore.History(ctx, "user-1", nil)
			Expect(history).To(BeEmpty())
		})

		It("fails when the consumer cannot start", func() {
			starter.startFn = func(context.Context, string, string) error {
				return errors.New("supervisor shutting down")
			}

			_, err := svc.Send(ctx, "user-1", "hello")
			Expect(err).To(HaveOccurred())
			Expect(submitter.all()).To(BeEmpty())
		})

		It("submits even after the request context is cancelled", func() {
			release := make(chan struct{})
			submitter.submitFn = func(sctx context.Context, _ pipeline.SubmitRequest) error {
				<-release
				return sctx.Err()
			}

			rctx, cancel := context.WithCancel(ctx)
			_, err := svc.Send(rctx, "user-1", "hello")
			Expect(err).NotTo(HaveOccurred())
			cancel()
			close(release)
			drain()

			Expect(publisher.all()).To(HaveLen(1))
		})
	})
})
