package conversations

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/chative-genui/server/internal/agent/model"
)

// MessagesManager loads and saves conversation state and builds model context windows.
type MessagesManager struct {
	conversationRepo   model.ConversationRepository
	maxContextMessages int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo:   conversationRepo,
		maxContextMessages: config.MaxContextMessages,
	}
}

func (cm *MessagesManager) Load(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	return cm.conversationRepo.Load(ctx, conversationID)
}

func (cm *MessagesManager) Save(ctx context.Context, state *model.ConversationState) error {
	return cm.conversationRepo.Save(ctx, state)
}

// BuildContext returns the system prompt followed by the recent history, with extra
// trailing messages appended.
func (cm *MessagesManager) BuildContext(systemPrompt string, history []*schema.Message, extra ...*schema.Message) []*schema.Message {
	recent := trimTail(history, cm.maxContextMessages)
	messages := make([]*schema.Message, 0, len(recent)+len(extra)+1)
	messages = append(messages, schema.SystemMessage(systemPrompt))
	messages = append(messages, recent...)
	return append(messages, extra...)
}

// ====================== Helper function ======================
// trimTail keeps the last maxMessages messages. A window never starts with a tool result
// whose tool call was cut off.
func trimTail(messages []*schema.Message, maxMessages int) []*schema.Message {
	source := messages
	if maxMessages > 0 && len(messages) > maxMessages {
		source = messages[len(messages)-maxMessages:]
	}
	for len(source) > 0 && (source[0] == nil || source[0].Role == schema.Tool) {
		source = source[1:]
	}
	result := make([]*schema.Message, 0, len(source))
	for _, m := range source {
		if m != nil {
			result = append(result, m)
		}
	}
	return result
}
