package ailink

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signrelay/signrelay/internal/ailink/driver"
)

func TestClassifyStatusCodes(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		want       ErrorKind
	}{
		{"auth", 401, KindAuth},
		{"forbidden", 403, KindAuth},
		{"rate", 429, KindQuota},
		{"missing", 404, KindNotFound},
		{"gateway timeout", 504, KindTimeout},
		{"unavail", 503, KindUnavailable},
		{"bad", 400, KindOther},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := &driver.ProviderError{Provider: "gemini", StatusCode: tc.statusCode, Message: "boom"}
			require.Equal(t, tc.want, Classify(err))
		})
	}
}

func TestClassifyWrappedAndMessages(t *testing.T) {
	require.Equal(t, KindNone, Classify(nil))
	require.Equal(t, KindTimeout, Classify(fmt.Errorf("call: %w", context.DeadlineExceeded)))
	require.Equal(t, KindQuota, Classify(errors.New("429 Quota exceeded for quota metric")))
	require.Equal(t, KindQuota, Classify(&driver.ProviderError{StatusCode: 400, Message: "RESOURCE_EXHAUSTED"}))
	require.Equal(t, KindNotFound, Classify(errors.New("model gemini-pro not found")))
	require.Equal(t, KindOther, Classify(errors.New("connection reset")))
	require.Equal(t, KindAuth, Classify(fmt.Errorf("complete: %w", driver.ErrMissingAPIKey)))
}

func TestErrorKindString(t *testing.T) {
	require.Equal(t, "quota", KindQuota.String())
	require.Equal(t, "not_found", KindNotFound.String())
	require.Equal(t, "other", ErrorKind(99).String())
}
