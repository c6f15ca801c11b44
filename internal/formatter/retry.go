package formatter

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/seqthink/engine/internal/conversation"
	"github.com/seqthink/engine/internal/engerr"
)

// AttemptFunc asks the provider for one more formatter turn. lastAttempt
// is true on the final retry, signaling the caller to reduce temperature
// and token budget per spec §4.E step 3.
type AttemptFunc func(ctx context.Context, lastAttempt bool) (conversation.Message, error)

// maxBackoff caps the exponential retry delay at 4s, per spec: "1s, 2s,
// 4s capped."
const maxBackoff = 4 * time.Second

// ExtractWithRetry calls attempt and extracts its reply, retrying with
// bounded exponential back-off (1s, 2s, 4s capped) on formatter failure.
// Exhaustion returns the final KindFormat error unchanged, for the loop
// to surface as a single terminal error line.
func ExtractWithRetry(ctx context.Context, attempt AttemptFunc, maxRetries int) (StoreFormat, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0 // exact 1s, 2s, 4s delays; jitter would exceed the cap
	b.MaxInterval = maxBackoff
	b.MaxElapsedTime = 0 // bounded by WithMaxRetries instead of wall-clock
	bounded := backoff.WithMaxRetries(b, uint64(maxRetries))
	bounded = backoff.WithContext(bounded, ctx)

	var out StoreFormat
	attemptN := 0
	err := backoff.Retry(func() error {
		lastAttempt := attemptN == maxRetries
		reply, err := attempt(ctx, lastAttempt)
		attemptN++
		if err != nil {
			if engerr.Is(err, engerr.KindCancelled) {
				return backoff.Permanent(err)
			}
			log.Warn().Err(err).Int("attempt", attemptN).Msg("formatter turn failed, retrying")
			return err
		}
		sf, ferr := Extract(reply)
		if ferr != nil {
			log.Warn().Err(ferr).Int("attempt", attemptN).Msg("formatter validation failed, retrying")
			return ferr
		}
		out = sf
		return nil
	}, bounded)

	if err != nil {
		return StoreFormat{}, err
	}
	return out, nil
}
