package service_test

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"infiya.app/relay/common/id"
	"infiya.app/relay/internal/model"
	"infiya.app/relay/internal/service"
)

var _ = Describe("ConversationService", func() {
	var (
		ctx   context.Context
		store *memoryChatStore
		svc   service.ConversationService
	)

	BeforeEach(func() {
		ctx = context.Background()
		Expect(id.Init(1)).To(Succeed())
		store = &memoryChatStore{}
		svc = service.NewConversationService(store)
	})

	It("returns the last two of five messages in chronological order", func() {
		for i := range 5 {
			_, err := svc.AppendUserMessage(ctx, "user-1", "wf", fmt.Sprintf("msg %d", i))
			Expect(err).NotTo(HaveOccurred())
		}

		limit := 2
		msgs, err := svc.History(ctx, "user-1", &limit)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[0].Content).To(Equal("msg 3"))
		Expect(msgs[1].Content).To(Equal("msg 4"))
	})

	It("round-trips an assistant message with its workflow and stats", func() {
		intent := "news"
		stats := &model.WorkflowStats{Intent: &intent, TotalDurationMS: 1500, ArticlesFound: 3}
		text := "Here are today's headlines:\n- one\n- two ✓"

		created, err := svc.AppendAssistantMessage(ctx, "user-1", "workflow_abc", text, stats)
		Expect(err).NotTo(HaveOccurred())
		Expect(created.Role).To(Equal(model.RoleAssistant))

		msgs, err := svc.History(ctx, "user-1", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(msgs).To(HaveLen(1))
		Expect(msgs[0].Content).To(Equal(text))
		Expect(*msgs[0].WorkflowID).To(Equal("workflow_abc"))
		Expect(msgs[0].WorkflowStats).To(Equal(stats))
	})

	It("returns storage errors for assistant messages", func() {
		failing := &mockChatStore{appendFn: func(context.Context, *model.ChatMessage) error {
			return errors.New("disk full")
		}}
		svc = service.NewConversationService(failing)

		msg, err := svc.AppendAssistantMessage(ctx, "user-1", "wf", "answer", nil)
		Expect(err).To(MatchError(ContainSubstring("disk full")))
		Expect(msg).To(BeNil())
	})

	It("clears idempotently", func() {
		_, err := svc.AppendUserMessage(ctx, "user-1", "wf", "hello")
		Expect(err).NotTo(HaveOccurred())

		n, err := svc.Clear(ctx, "user-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		n, err = svc.Clear(ctx, "user-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())

		msgs, _ := svc.History(ctx, "user-1", nil)
		Expect(msgs).To(BeEmpty())
	})
})
