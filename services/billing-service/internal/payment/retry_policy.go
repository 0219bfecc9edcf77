//services/billing-service/internal/payment/retry_policy.go

package payment

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/stripe/stripe-go/v79"
)

// IsRetryAbleError reports whether a gateway failure is worth asking the caller to retry.
// Card and validation errors are final; outages, throttling and timeouts are not.
func IsRetryAbleError(err error) bool {
	if err == nil { // No error, no retry needed
		return false
	}
	if errors.Is(err, ErrProviderDown) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return isRetryAbleStripeError(err) || isRetryAbleNetworkError(err) || isRetryAbleSystemError(err)
}

func isRetryAbleStripeError(err error) bool {
	var stripeError *stripe.Error
	if !errors.As(err, &stripeError) {
		return false
	}
	// HTTP 5xx: Stripe side -> RETRY. 4xx: our request or the card -> STOP.
	if stripeError.HTTPStatusCode >= 500 && stripeError.HTTPStatusCode < 600 {
		return true
	}
	switch stripeError.Code {
	case stripe.ErrorCodeRateLimit, stripe.ErrorCodeLockTimeout:
		return true
	}
	return false
}

func isRetryAbleNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRetryAbleSystemError(err error) bool {
	//Connection Refused / Reset
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
