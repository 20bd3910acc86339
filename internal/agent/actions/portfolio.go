package actions

import (
	"context"
	"fmt"

	"github.com/chative-genui/server/internal/agent/model"
	logx "github.com/chative-genui/server/pkg/logger"
)

// BuyProposal is the snapshot shown to the user before a purchase is confirmed.
type BuyProposal struct {
	Ticker   string         `json:"ticker"`
	Quantity float64        `json:"quantity"`
	Snapshot model.Snapshot `json:"snapshot"`
}

// Portfolio reads and mutates the session portfolio.
type Portfolio struct {
	repo   model.PortfolioRepository
	market *Market
}

func NewPortfolio(repo model.PortfolioRepository, market *Market) *Portfolio {
	return &Portfolio{repo: repo, market: market}
}

func (p *Portfolio) Holdings(ctx context.Context, conversationID string) Result[[]model.Holding] {
	holdings, err := p.repo.Holdings(ctx, conversationID)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("Portfolio lookup failed")
		return Fail[[]model.Holding]("Failed to load your portfolio.")
	}
	if holdings == nil {
		holdings = []model.Holding{}
	}
	return Succeed(holdings)
}

// Propose snapshots the ticker price for a buy awaiting confirmation.
func (p *Portfolio) Propose(ctx context.Context, ticker string, quantity float64) Result[BuyProposal] {
	if quantity <= 0 {
		return Fail[BuyProposal]("Quantity must be greater than zero.")
	}
	snap := p.market.Snapshot(ctx, ticker)
	if !snap.OK() {
		return Fail[BuyProposal](snap.Reason)
	}
	return Succeed(BuyProposal{Ticker: snap.Value.Ticker, Quantity: quantity, Snapshot: snap.Value})
}

// Buy records a confirmed purchase at the proposed price.
func (p *Portfolio) Buy(ctx context.Context, conversationID string, proposal BuyProposal) Result[model.Holding] {
	h, err := p.repo.Buy(ctx, conversationID, proposal.Ticker, proposal.Quantity, proposal.Snapshot.Price)
	if err != nil {
		logx.Error().Err(err).Str("ticker", proposal.Ticker).Msg("Purchase failed")
		return Fail[model.Holding](fmt.Sprintf("Failed to buy %s.", proposal.Ticker))
	}
	return Succeed(h)
}
