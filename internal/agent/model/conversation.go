package model

import (
	"context"
)

type ConversationRepository interface {
	// Load returns the stored state, or a fresh state when the conversation is unknown.
	Load(ctx context.Context, conversationID string) (*ConversationState, error)

	// Save replaces the stored state and refreshes its TTL.
	Save(ctx context.Context, state *ConversationState) error

	// Clear removes the conversation.
	Clear(ctx context.Context, conversationID string) error
}

type PortfolioRepository interface {
	// Holdings lists the positions held in a conversation's session.
	Holdings(ctx context.Context, conversationID string) ([]Holding, error)

	// Buy records a purchase and returns the updated position.
	Buy(ctx context.Context, conversationID string, ticker string, quantity float64, price float64) (Holding, error)
}
