package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// ThrottledSender keeps outgoing calls under Telegram's per-bot flood limit.
// Calls block until the limiter allows them.
type ThrottledSender struct {
	next    Sender
	limiter *rate.Limiter
}

// Throttle wraps next with a limiter of perSecond calls and the given burst.
// A non-positive perSecond returns next unchanged.
func Throttle(next Sender, perSecond float64, burst int) Sender {
	if perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &ThrottledSender{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (t *ThrottledSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := t.limiter.Wait(context.Background()); err != nil {
		return tgbotapi.Message{}, err
	}
	return t.next.Send(c)
}

func (t *ThrottledSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if err := t.limiter.Wait(context.Background()); err != nil {
		return nil, err
	}
	return t.next.Request(c)
}
