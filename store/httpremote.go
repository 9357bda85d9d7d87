package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPRemote talks to the shared document store over HTTP. Documents live
// under /collections/{collection}/{id}; a collection GET returns every
// document, newest first. Write timeouts come from the caller's context,
// the engine applies them per item.
type HTTPRemote struct {
	baseURL  string
	token    string
	identity string
	client   *http.Client
}

// NewHTTPRemote creates a remote store client. identity is stamped into the
// createdBy field of every written document.
func NewHTTPRemote(baseURL, token, identity string) *HTTPRemote {
	return &HTTPRemote{
		baseURL:  strings.TrimRight(baseURL, "/"),
		token:    token,
		identity: identity,
	}
}

func (r *HTTPRemote) getClient() *http.Client {
	if r.client == nil {
		r.client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		}
	}
	return r.client
}

func (r *HTTPRemote) collectionURL(collection string) string {
	return fmt.Sprintf("%s/collections/%s", r.baseURL, collection)
}

func (r *HTTPRemote) documentURL(collection, id string) string {
	return fmt.Sprintf("%s/collections/%s/%s", r.baseURL, collection, id)
}

func (r *HTTPRemote) do(ctx context.Context, op, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &RemoteError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.getClient().Do(req)
	if err != nil {
		// Transport failure or context deadline; IsUnreachable and
		// IsTimeout unwrap this to tell the two apart.
		return nil, &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = resp.Status
		}
		return nil, NewRemoteError(op, resp.StatusCode, msg)
	}

	return respBody, nil
}

// GetLabels fetches the complete labels collection.
func (r *HTTPRemote) GetLabels(ctx context.Context) ([]LabelRecord, error) {
	body, err := r.do(ctx, "GetLabels", http.MethodGet, r.collectionURL(CollectionLabels), nil)
	if err != nil {
		return nil, err
	}

	var labels []LabelRecord
	if err := json.Unmarshal(body, &labels); err != nil {
		return nil, &RemoteError{Op: "GetLabels", Err: fmt.Errorf("decoding response: %w", err)}
	}
	return labels, nil
}

// GetOrders fetches the complete orders collection.
func (r *HTTPRemote) GetOrders(ctx context.Context) ([]OrderRecord, error) {
	body, err := r.do(ctx, "GetOrders", http.MethodGet, r.collectionURL(CollectionOrders), nil)
	if err != nil {
		return nil, err
	}

	var orders []OrderRecord
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, &RemoteError{Op: "GetOrders", Err: fmt.Errorf("decoding response: %w", err)}
	}
	return orders, nil
}

// PutLabel upserts a label under its own id, stamping provenance.
func (r *HTTPRemote) PutLabel(ctx context.Context, rec LabelRecord) error {
	r.stampLabel(&rec)
	body, err := json.Marshal(rec)
	if err != nil {
		return &RemoteError{Op: "PutLabel", Collection: CollectionLabels, ID: rec.ID, Err: err}
	}
	_, err = r.do(ctx, "PutLabel", http.MethodPut, r.documentURL(CollectionLabels, rec.ID), body)
	return withItem(err, CollectionLabels, rec.ID)
}

// PutOrder upserts an order under its own id, stamping provenance.
func (r *HTTPRemote) PutOrder(ctx context.Context, rec OrderRecord) error {
	r.stampOrder(&rec)
	body, err := json.Marshal(rec)
	if err != nil {
		return &RemoteError{Op: "PutOrder", Collection: CollectionOrders, ID: rec.ID, Err: err}
	}
	_, err = r.do(ctx, "PutOrder", http.MethodPut, r.documentURL(CollectionOrders, rec.ID), body)
	return withItem(err, CollectionOrders, rec.ID)
}

// DeleteLabel removes a remote label document.
func (r *HTTPRemote) DeleteLabel(ctx context.Context, id string) error {
	_, err := r.do(ctx, "DeleteLabel", http.MethodDelete, r.documentURL(CollectionLabels, id), nil)
	return withItem(err, CollectionLabels, id)
}

// DeleteOrder removes a remote order document.
func (r *HTTPRemote) DeleteOrder(ctx context.Context, id string) error {
	_, err := r.do(ctx, "DeleteOrder", http.MethodDelete, r.documentURL(CollectionOrders, id), nil)
	return withItem(err, CollectionOrders, id)
}

func (r *HTTPRemote) stampLabel(rec *LabelRecord) {
	if rec.CreatedBy == "" {
		rec.CreatedBy = r.identity
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
}

func (r *HTTPRemote) stampOrder(rec *OrderRecord) {
	if rec.CreatedBy == "" {
		rec.CreatedBy = r.identity
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
}

// withItem adds collection and id context to a RemoteError.
func withItem(err error, collection, id string) error {
	if err == nil {
		return nil
	}
	if re, ok := err.(*RemoteError); ok {
		re.Collection = collection
		re.ID = id
	}
	return err
}
