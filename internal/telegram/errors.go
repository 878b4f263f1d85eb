package telegram

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-telegram/bot"

	"github.com/vroommarket/listingbot/internal/retry"
)

// classifyError maps Bot API errors onto the retry taxonomy.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var tooMany *bot.TooManyRequestsError
	switch {
	case errors.As(err, &tooMany):
		return &retry.RateLimitError{RetryAfter: time.Duration(tooMany.RetryAfter) * time.Second, Err: err}
	case errors.Is(err, bot.ErrorUnauthorized):
		return &retry.AuthError{StatusCode: http.StatusUnauthorized, Err: err}
	case errors.Is(err, bot.ErrorForbidden):
		return &retry.AuthError{StatusCode: http.StatusForbidden, Err: err}
	}
	return retry.Classify(err)
}
