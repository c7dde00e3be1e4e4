package session

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"

	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Response statuses reported by the API.
const (
	StatusSuccess    = "success"
	StatusFailure    = "failure"
	StatusIncomplete = "incomplete"
)

// Response is the parsed API envelope. Every call that returns at all
// returns one of these; failures are additionally surfaced as typed errors
// carrying Msgs.
type Response struct {
	Status string              `json:"status"`
	Data   jsoniter.RawMessage `json:"data"`
	JobID  int64               `json:"job_id"`
	Msgs   []dynerrors.Message `json:"msgs"`
}

// Get extracts a field from the response data by gjson path, e.g.
// "token" or "zone".
func (r *Response) Get(path string) gjson.Result {
	return gjson.GetBytes(r.Data, path)
}

// parseResponse decodes a raw body into the envelope.
func parseResponse(body []byte) (*Response, error) {
	if len(body) == 0 {
		return nil, dynerrors.ErrSession.Msg("received empty response")
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, dynerrors.ErrSession.Msg("decode error on response body").Err(err)
	}
	return &resp, nil
}
