// Package zone provides thin wrappers over the Zone and record endpoints.
// They are examples of the CRUD plumbing the rest of the API follows: every
// wrapper is a URL template plus a RequestFields implementation, executed
// through whichever session the caller hands in.
package zone

import (
	"context"
	"fmt"

	"github.com/dynectlabs/dynect-go/pkg/dynect/dynerrors"
	"github.com/dynectlabs/dynect-go/pkg/dynect/session"
)

// Executor is the slice of the session engine the wrappers need. Both
// Session and MultiSession satisfy it.
type Executor interface {
	Execute(ctx context.Context, path, method string, args any) (*session.Response, error)
}

// Serial styles accepted by the API.
var validSerialStyles = map[string]bool{
	"increment": true,
	"epoch":     true,
	"day":       true,
	"minute":    true,
}

// Zone is one DNS zone.
type Zone struct {
	Name        string
	Contact     string // administrative contact (SOA rname)
	TTL         int
	SerialStyle string
	Serial      int64
	Status      string
}

// RequestFields serializes the zone for create calls.
func (z *Zone) RequestFields() map[string]any {
	fields := map[string]any{
		"zone":  z.Name,
		"rname": z.Contact,
		"ttl":   z.TTL,
	}
	if z.SerialStyle != "" {
		fields["serial_style"] = z.SerialStyle
	}
	return fields
}

// Create registers a new zone. TTL defaults to 60 and the serial style to
// increment, matching the API defaults.
func Create(ctx context.Context, x Executor, z *Zone) error {
	if z.Name == "" {
		return dynerrors.ErrArgument.Msg("zone name is required")
	}
	if z.Contact == "" {
		return dynerrors.ErrArgument.Msg("zone contact is required")
	}
	if z.SerialStyle != "" && !validSerialStyles[z.SerialStyle] {
		return dynerrors.ErrArgument.Msg(fmt.Sprintf(
			"invalid serial style %q: valid values are increment, epoch, day, minute", z.SerialStyle))
	}
	if z.TTL == 0 {
		z.TTL = 60
	}

	resp, err := x.Execute(ctx, fmt.Sprintf("/Zone/%s/", z.Name), "POST", z)
	if err != nil {
		return err
	}
	fill(z, resp)
	return nil
}

// Get fetches a zone by name.
func Get(ctx context.Context, x Executor, name string) (*Zone, error) {
	resp, err := x.Execute(ctx, fmt.Sprintf("/Zone/%s/", name), "GET", nil)
	if err != nil {
		return nil, err
	}
	z := &Zone{Name: name}
	fill(z, resp)
	return z, nil
}

// Delete removes a zone and everything in it.
func Delete(ctx context.Context, x Executor, name string) error {
	_, err := x.Execute(ctx, fmt.Sprintf("/Zone/%s/", name), "DELETE", nil)
	return err
}

// Publish pushes pending changes live and returns the refreshed zone.
func Publish(ctx context.Context, x Executor, name string) (*Zone, error) {
	resp, err := x.Execute(ctx, fmt.Sprintf("/Zone/%s/", name), "PUT",
		map[string]any{"publish": true})
	if err != nil {
		return nil, err
	}
	z := &Zone{Name: name}
	fill(z, resp)
	return z, nil
}

// Freeze blocks changes to the zone until Thaw.
func Freeze(ctx context.Context, x Executor, name string) error {
	_, err := x.Execute(ctx, fmt.Sprintf("/Zone/%s/", name), "PUT",
		map[string]any{"freeze": true})
	return err
}

// Thaw reverses Freeze.
func Thaw(ctx context.Context, x Executor, name string) error {
	_, err := x.Execute(ctx, fmt.Sprintf("/Zone/%s/", name), "PUT",
		map[string]any{"thaw": true})
	return err
}

// fill copies zone fields out of a response envelope.
func fill(z *Zone, resp *session.Response) {
	if v := resp.Get("zone"); v.Exists() {
		z.Name = v.String()
	}
	if v := resp.Get("zone_type"); v.Exists() {
		z.Status = v.String()
	}
	if v := resp.Get("status"); v.Exists() {
		z.Status = v.String()
	}
	if v := resp.Get("serial"); v.Exists() {
		z.Serial = v.Int()
	}
	if v := resp.Get("serial_style"); v.Exists() {
		z.SerialStyle = v.String()
	}
}
