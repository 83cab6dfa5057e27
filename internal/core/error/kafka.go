package errx

import (
	"context"
	"errors"
	"net/http"
)

// KafkaErrorMessage describes event stream publish failures.
const KafkaErrorMessage = "event stream publish failed"

// WrapKafka maps publisher errors to the unified Error type. Deadline
// expiry is reported as a gateway timeout.
func WrapKafka(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(err, http.StatusGatewayTimeout, KafkaErrorMessage)
	}

	return New(err, http.StatusBadGateway, KafkaErrorMessage)
}
