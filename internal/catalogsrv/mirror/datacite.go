package mirror

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/datapub/datapub/internal/catalogsrv/config"
)

// StatusError is a non-2xx registry response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("registry returned %d: %s", e.StatusCode, e.Body)
}

// Permanent reports whether retrying the request cannot change the outcome.
// Client errors are permanent except timeouts and rate limits.
func (e *StatusError) Permanent() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// DataCiteTarget talks to the DataCite REST API using basic auth. DOIs are
// registered under the configured prefix; upserts publish in a single call.
type DataCiteTarget struct {
	apiUrl   string
	username string
	password string
	client   *http.Client
}

// NewDataCiteTarget returns a target for the configured registry endpoint.
func NewDataCiteTarget(cfg *config.MirrorConfig) *DataCiteTarget {
	return &DataCiteTarget{
		apiUrl:   cfg.ApiUrl,
		username: cfg.Username,
		password: cfg.Password,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Upsert registers or updates the DOI. The payload is the published form
// produced by evaluation: doi, landing page url, and metadata. The JSON:API
// envelope the registry expects is assembled around those fields.
func (t *DataCiteTarget) Upsert(ctx context.Context, doi string, payload []byte) error {
	if !gjson.ValidBytes(payload) {
		return errors.New("invalid sync payload")
	}

	body := []byte(`{"data":{"type":"dois","attributes":{"event":"publish"}}}`)
	var err error
	if body, err = sjson.SetBytes(body, "data.attributes.doi", gjson.GetBytes(payload, "doi").String()); err != nil {
		return errors.Wrap(err, "unable to build registry request")
	}
	if body, err = sjson.SetBytes(body, "data.attributes.url", gjson.GetBytes(payload, "url").String()); err != nil {
		return errors.Wrap(err, "unable to build registry request")
	}
	if md := gjson.GetBytes(payload, "metadata"); md.Exists() {
		if body, err = sjson.SetRawBytes(body, "data.attributes.metadata", []byte(md.Raw)); err != nil {
			return errors.Wrap(err, "unable to build registry request")
		}
	}

	return t.do(ctx, http.MethodPut, t.doiUrl(doi), body, nil)
}

// Delete removes the DOI registration. A 404 means the registry already has
// no entry and counts as success.
func (t *DataCiteTarget) Delete(ctx context.Context, doi string) error {
	return t.do(ctx, http.MethodDelete, t.doiUrl(doi), nil, map[int]bool{
		http.StatusNotFound: true,
	})
}

func (t *DataCiteTarget) doiUrl(doi string) string {
	return t.apiUrl + "/dois/" + url.PathEscape(doi)
}

func (t *DataCiteTarget) do(ctx context.Context, method, u string, body []byte, okStatus map[int]bool) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return errors.Wrap(err, "unable to build registry request")
	}
	req.SetBasicAuth(t.username, t.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/vnd.api+json")
	}

	rsp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "registry request failed")
	}
	defer rsp.Body.Close()

	if rsp.StatusCode >= 200 && rsp.StatusCode < 300 {
		return nil
	}
	if okStatus[rsp.StatusCode] {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(rsp.Body, 1024))
	return &StatusError{StatusCode: rsp.StatusCode, Body: string(msg)}
}
