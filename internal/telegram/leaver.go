// Package telegram adapts outbound Bot API calls.
package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"
)

// BotAPI is the subset of the Bot API client the leaver needs.
type BotAPI interface {
	LeaveChat(ctx context.Context, params *bot.LeaveChatParams) (bool, error)
}

// Leaver issues rate-limited leave-conversation calls. The limiter keeps a
// burst of departures from tripping the API's flood control; waiting is
// bounded by the caller's context.
type Leaver struct {
	api     BotAPI
	limiter *rate.Limiter
}

// NewLeaver creates a leaver capped at rps leave calls per second.
func NewLeaver(api BotAPI, rps float64) *Leaver {
	return &Leaver{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// LeaveChat leaves the conversation with the given external id.
func (l *Leaver) LeaveChat(ctx context.Context, telegramID int64) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	ok, err := l.api.LeaveChat(ctx, &bot.LeaveChatParams{ChatID: telegramID})
	if err != nil {
		return fmt.Errorf("leave chat %d: %w", telegramID, err)
	}
	if !ok {
		return fmt.Errorf("leave chat %d: declined by api", telegramID)
	}
	return nil
}
