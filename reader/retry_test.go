package reader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffLinearForRateLimits(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: 2 * time.Second, MaxBackoff: 60 * time.Second}
	err := &RateLimitedError{Provider: "hosted"}

	delay0, retry0 := policy.backoffFor(err, 0)
	delay1, retry1 := policy.backoffFor(err, 1)
	delay2, retry2 := policy.backoffFor(err, 2)

	assert.True(t, retry0)
	assert.True(t, retry1)
	assert.True(t, retry2)
	assert.Equal(t, 2*time.Second, delay0)
	assert.Equal(t, 4*time.Second, delay1)
	assert.Equal(t, 6*time.Second, delay2)
}

func TestBackoffHonorsRetryAfter(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: 2 * time.Second, MaxBackoff: 60 * time.Second}
	err := &RateLimitedError{Provider: "hosted", RetryAfter: 10 * time.Second}

	delay, retry := policy.backoffFor(err, 0)
	assert.True(t, retry)
	assert.Equal(t, 10*time.Second, delay)
}

func TestBackoffExponentialForServerErrors(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 6, BaseDelay: 2 * time.Second, MaxBackoff: 60 * time.Second}
	err := &ServiceUnavailableError{Provider: "hosted", StatusCode: 503}

	delay0, _ := policy.backoffFor(err, 0)
	delay1, _ := policy.backoffFor(err, 1)
	delay2, _ := policy.backoffFor(err, 2)
	delay5, _ := policy.backoffFor(err, 5)

	assert.Equal(t, 2*time.Second, delay0)
	assert.Equal(t, 4*time.Second, delay1)
	assert.Equal(t, 8*time.Second, delay2)
	assert.Equal(t, 60*time.Second, delay5, "backoff should cap at MaxBackoff")
}

func TestBackoffNeverRetriesFatalErrors(t *testing.T) {
	policy := DefaultRetryPolicy()

	_, retry := policy.backoffFor(ErrConfiguration, 0)
	assert.False(t, retry)

	_, retry = policy.backoffFor(context.Canceled, 0)
	assert.False(t, retry)

	_, retry = policy.backoffFor(&ContentUnavailableError{Provider: "hosted", StatusCode: 422}, 0)
	assert.False(t, retry, "422 gets the proxy-off retry, not blind repetition")
}
