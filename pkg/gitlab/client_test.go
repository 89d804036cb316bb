package gitlab

import (
	"net/http"
	"testing"
	"time"

	"github.com/paulbellamy/ratecounter"
	"github.com/stretchr/testify/assert"
	goGitlab "gitlab.com/gitlab-org/api/client-go"
)

func TestRequestsRemaining(t *testing.T) {
	c := &Client{RateCounter: ratecounter.NewRateCounter(time.Second)}

	header := http.Header{}
	header.Set("ratelimit-remaining", "1987")
	header.Set("ratelimit-limit", "2000")

	c.requestsRemaining(&goGitlab.Response{Response: &http.Response{Header: header}})

	assert.Equal(t, 1987, c.RequestsRemaining)
	assert.Equal(t, 2000, c.RequestsLimit)

	// A nil response leaves the bookkeeping alone.
	c.requestsRemaining(nil)
	assert.Equal(t, 1987, c.RequestsRemaining)
}

func TestAPIUsage(t *testing.T) {
	c := &Client{RateCounter: ratecounter.NewRateCounter(time.Second)}
	c.RequestsCounter.Add(3)
	c.RequestsLimit = 2000
	c.RequestsRemaining = 1997

	fields := c.APIUsage()
	assert.Equal(t, uint64(3), fields["gitlab-api-requests"])
	assert.Equal(t, 2000, fields["gitlab-api-limit"])
	assert.Equal(t, 1997, fields["gitlab-api-limit-remaining"])
}
