package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
	"github.com/dynectlabs/dynect-go/pkg/dynect/transport"
)

// pollRedirect resolves the 307 redirect-to-job-status loop: while the
// server answers "job not yet done, retry at Location", sleep and re-fetch.
// The loop is bounded by MaxPollAttempts; exhaustion is a query timeout.
func (s *Session) pollRedirect(ctx context.Context, raw *transport.Response) (*transport.Response, error) {
	attempts := 0
	for raw.StatusCode == http.StatusTemporaryRedirect {
		if attempts >= s.cfg.MaxPollAttempts {
			return nil, dynerrors.ErrQueryTimeout.Msg(
				fmt.Sprintf("job still incomplete after %d polls", attempts))
		}
		attempts++

		location := raw.Location
		if location == "" {
			return nil, dynerrors.ErrSession.Msg("redirect response missing Location header")
		}
		if u, err := url.Parse(location); err == nil && u.Path != "" {
			location = u.Path
		}

		if err := sleepCtx(ctx, s.cfg.PollInterval); err != nil {
			return nil, err
		}
		s.logger.Info().Str("location", location).Msg("polling job location")

		var err error
		raw, err = s.conn.Do(ctx, transport.Request{
			Method:  http.MethodGet,
			Path:    location,
			Headers: s.headers(),
		})
		if err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// errJobIncomplete drives the WaitForJob retry loop; never surfaced raw.
var errJobIncomplete = dynerrors.ErrSession.New("job still incomplete")

// WaitForJob polls /Job/{id}/ until the job leaves the incomplete state or
// the timeout elapses. A zero timeout selects the configured default. The
// returned envelope may still report failure; callers that care should
// check Status. Timeout or context expiry yields ErrQueryTimeout.
func (s *Session) WaitForJob(ctx context.Context, jobID int64, timeout time.Duration) (*Response, error) {
	if timeout == 0 {
		timeout = s.cfg.JobTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Debug().Int64("job_id", jobID).Msg("waiting for job to complete")
	path := normalizePath(fmt.Sprintf("/Job/%d/", jobID))

	var resp *Response
	err := retry.Do(
		func() error {
			raw, err := s.conn.Do(ctx, transport.Request{
				Method:  http.MethodGet,
				Path:    path,
				Headers: s.headers(),
			})
			if err != nil {
				return retry.Unrecoverable(err)
			}
			resp, err = parseResponse(raw.Body)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			s.lastResponse = resp
			if resp.Status == StatusIncomplete {
				return errJobIncomplete
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(0),
		retry.Delay(s.cfg.JobPollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, dynerrors.ErrQueryTimeout.Msg(
				fmt.Sprintf("job %d did not complete within %s", jobID, timeout)).Err(err)
		}
		return nil, err
	}
	return resp, nil
}
