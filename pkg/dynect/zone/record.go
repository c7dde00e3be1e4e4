package zone

import (
	"context"
	"fmt"

	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
	"github.com/dynectlabs/dynect-go/pkg/dynect/session"
)

// ARecord is one address record within a zone.
type ARecord struct {
	Zone    string
	FQDN    string
	Address string
	TTL     int
	ID      int64
}

// RequestFields serializes the record for create and update calls. The
// address rides inside the rdata envelope the record endpoints expect.
func (r *ARecord) RequestFields() map[string]any {
	return map[string]any{
		"rdata": map[string]any{"address": r.Address},
		"ttl":   r.TTL,
	}
}

// CreateARecord adds an address record under the given node.
func CreateARecord(ctx context.Context, x Executor, r *ARecord) error {
	if r.Zone == "" || r.FQDN == "" {
		return dynerrors.ErrArgument.Msg("zone and fqdn are required")
	}
	if r.Address == "" {
		return dynerrors.ErrArgument.Msg("address is required")
	}

	resp, err := x.Execute(ctx, fmt.Sprintf("/ARecord/%s/%s/", r.Zone, r.FQDN), "POST", r)
	if err != nil {
		return err
	}
	fillRecord(r, resp)
	return nil
}

// GetARecord fetches one address record by id.
func GetARecord(ctx context.Context, x Executor, zoneName, fqdn string, id int64) (*ARecord, error) {
	resp, err := x.Execute(ctx,
		fmt.Sprintf("/ARecord/%s/%s/%d/", zoneName, fqdn, id), "GET", nil)
	if err != nil {
		return nil, err
	}
	r := &ARecord{Zone: zoneName, FQDN: fqdn, ID: id}
	fillRecord(r, resp)
	return r, nil
}

// DeleteARecord removes one address record by id.
func DeleteARecord(ctx context.Context, x Executor, zoneName, fqdn string, id int64) error {
	_, err := x.Execute(ctx,
		fmt.Sprintf("/ARecord/%s/%s/%d/", zoneName, fqdn, id), "DELETE", nil)
	return err
}

func fillRecord(r *ARecord, resp *session.Response) {
	if v := resp.Get("fqdn"); v.Exists() {
		r.FQDN = v.String()
	}
	if v := resp.Get("ttl"); v.Exists() {
		r.TTL = int(v.Int())
	}
	if v := resp.Get("record_id"); v.Exists() {
		r.ID = v.Int()
	}
	if v := resp.Get("rdata.address"); v.Exists() {
		r.Address = v.String()
	}
}
