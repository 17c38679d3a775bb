package service

import (
	"infiya.app/relay/core/config"
	"infiya.app/relay/internal/pipeline"
	"infiya.app/relay/internal/store"
)

type Services struct {
	stores    *store.Stores
	txRunner  TxRunner
	publisher Publisher
	submitter pipeline.Submitter
	relayCfg  config.RelayConfig
}

func NewServices(stores *store.Stores, txRunner TxRunner, publisher Publisher, submitter pipeline.Submitter, relayCfg config.RelayConfig) *Services {
	return &Services{
		stores:    stores,
		txRunner:  txRunner,
		publisher: publisher,
		submitter: submitter,
		relayCfg:  relayCfg,
	}
}

func (s *Services) Conversations() ConversationService {
	return NewConversationService(s.stores.Chat())
}

// Chat builds the chat service. The workflow starter is passed in because it
// depends on Conversations itself.
func (s *Services) Chat(workflows WorkflowStarter) ChatService {
	return NewChatService(s.txRunner, s.publisher, workflows, s.submitter, s.relayCfg.MaxMessageLength)
}
