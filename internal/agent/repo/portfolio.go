package repo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chative-genui/server/internal/agent/model"
	errx "github.com/chative-genui/server/internal/core/error"
	logx "github.com/chative-genui/server/pkg/logger"
)

const (
	quantityField = "qty"
	costField     = "cost"
)

// RedisPortfolioRepository keeps one hash per conversation with a quantity and a total
// cost field per ticker, so purchases are plain atomic increments.
type RedisPortfolioRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisPortfolioRepository(rdb redis.Cmdable, ttl time.Duration) *RedisPortfolioRepository {
	return &RedisPortfolioRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisPortfolioRepository) portfolioKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:portfolio", conversationID)
}

func (r *RedisPortfolioRepository) Holdings(ctx context.Context, conversationID string) ([]model.Holding, error) {
	key := r.portfolioKey(conversationID)
	fields, err := r.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load portfolio from redis")
		return nil, errx.WrapRedis(err)
	}
	return parseHoldings(fields), nil
}

func (r *RedisPortfolioRepository) Buy(ctx context.Context, conversationID, ticker string, quantity, price float64) (model.Holding, error) {
	key := r.portfolioKey(conversationID)
	ticker = strings.ToUpper(ticker)

	pipe := r.rdb.TxPipeline()
	qty := pipe.HIncrByFloat(ctx, key, ticker+":"+quantityField, quantity)
	cost := pipe.HIncrByFloat(ctx, key, ticker+":"+costField, quantity*price)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logx.Error().Err(err).Str("key", key).Str("ticker", ticker).Msg("failed to record purchase")
		return model.Holding{}, errx.WrapRedis(err)
	}
	return holdingOf(ticker, qty.Val(), cost.Val()), nil
}

func parseHoldings(fields map[string]string) []model.Holding {
	type acc struct{ qty, cost float64 }
	byTicker := map[string]*acc{}
	for field, raw := range fields {
		ticker, kind, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			logx.Warn().Err(err).Str("field", field).Msg("Skipping malformed portfolio field")
			continue
		}
		a := byTicker[ticker]
		if a == nil {
			a = &acc{}
			byTicker[ticker] = a
		}
		switch kind {
		case quantityField:
			a.qty = v
		case costField:
			a.cost = v
		}
	}

	out := make([]model.Holding, 0, len(byTicker))
	for ticker, a := range byTicker {
		if a.qty <= 0 {
			continue
		}
		out = append(out, holdingOf(ticker, a.qty, a.cost))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

func holdingOf(ticker string, qty, cost float64) model.Holding {
	h := model.Holding{Ticker: ticker, Quantity: qty}
	if qty > 0 {
		h.AvgPrice = cost / qty
	}
	return h
}

var _ model.PortfolioRepository = (*RedisPortfolioRepository)(nil)
