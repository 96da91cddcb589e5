// Package catalog fetches services, forms and raw form details from the
// document backend.
package catalog

import (
	"context"
	"net/url"

	"github.com/jask/formdesk/internal/httpapi"
)

const (
	servicesPath    = "/api/services"
	formsPath       = "/api/forms"
	formDetailsPath = "/api/form-details"
)

// Client is the read side of the backend.
type Client struct {
	t *httpapi.Transport
}

// NewClient wraps a transport.
func NewClient(t *httpapi.Transport) *Client {
	return &Client{t: t}
}

// ListServices returns every service in backend order.
func (c *Client) ListServices(ctx context.Context) ([]Service, error) {
	var out []Service
	if err := c.t.GetJSON(ctx, "list services", servicesPath, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Service{}
	}
	return out, nil
}

// ListForms returns the forms offered by serviceID in backend order.
func (c *Client) ListForms(ctx context.Context, serviceID ID) ([]Form, error) {
	q := url.Values{"service_id": {serviceID.String()}}
	var out []Form
	if err := c.t.GetJSON(ctx, "list forms", formsPath, q, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Form{}
	}
	return out, nil
}

// FetchFormDetails returns the classified records describing formID.
func (c *Client) FetchFormDetails(ctx context.Context, formID ID) ([]Record, error) {
	q := url.Values{"form_id": {formID.String()}}
	var out []Record
	if err := c.t.GetJSON(ctx, "fetch form details", formDetailsPath, q, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Record{}
	}
	return out, nil
}
