//services/payment-service/internal/payment/retry_policy.go

package payment

import (
	"errors"
	"net"
	"net/http"
	"syscall"

	"github.com/valyala/fasthttp"
)

// StatusCoder is implemented by gateway errors that carry the remote HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

func IsRetryAbleError(err error) bool {
	if err == nil { // No error, no retry needed
		return false
	}
	if errors.Is(err, ErrProviderDown) {
		return true
	}
	return isRetryAbleGatewayError(err) || isRetryAbleNetworkError(err) || isRetryAbleSystemError(err)
}

func isRetryAbleGatewayError(err error) bool {
	var sc StatusCoder
	if !errors.As(err, &sc) {
		return false
	}
	// 4xx is our fault (bad card, bad request) -> STOP, except throttling
	status := sc.HTTPStatus()
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

func isRetryAbleNetworkError(err error) bool {
	if errors.Is(err, fasthttp.ErrTimeout) || errors.Is(err, fasthttp.ErrDialTimeout) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func isRetryAbleSystemError(err error) bool {
	//Connection Refused / Reset
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
