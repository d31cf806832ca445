package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gamedex/catalog-cache/pkg/catalog"
	"github.com/gamedex/catalog-cache/pkg/catalog/errors"
	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

// CatalogClient is the transport collaborator of the cache engine. The
// engine hands it endpoint paths; headers, tokens and the base URL are
// this client's concern alone.
type CatalogClient interface {
	FetchPage(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error)
	GetPage(ctx context.Context, endpoint string, parameters ...RequestDecoratorFunc) (*catalog.Page, error)
	RetrieveRecord(ctx context.Context, endpoint string) (types.Record, error)
	SubmitAction(ctx context.Context, endpoint string, body types.Record) (types.Record, error)
}

type RequestDecoratorFunc func([]string) []string

func Debug(enabled string) func(*ccClient) {
	return func(c *ccClient) {
		c.debug = (enabled == "true")
	}
}

func Token(token string) func(*ccClient) {
	return func(c *ccClient) {
		c.token = token
	}
}

func New(sourceURL string, options ...func(*ccClient)) CatalogClient {
	c := &ccClient{
		baseURL: sourceURL,
		debug:   false,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

const TraceAttributeEndpoint string = "endpoint"

var tracer = otel.Tracer("catalog-cache/client")

type ccClient struct {
	baseURL string
	token   string
	debug   bool
}

func (c ccClient) FetchPage(ctx context.Context, endpoint string, page, pageSize int) (*catalog.Page, error) {
	return c.GetPage(ctx, endpoint, Page(page), PageSize(pageSize))
}

func (c ccClient) GetPage(ctx context.Context, endpoint string, parameters ...RequestDecoratorFunc) (*catalog.Page, error) {
	var err error

	ctx, span := tracer.Start(ctx, "get-page",
		trace.WithAttributes(attribute.String(TraceAttributeEndpoint, endpoint)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	params := make([]string, 0, 5)
	for _, rdf := range parameters {
		params = rdf(params)
	}

	urlparams := ""
	if len(params) > 0 {
		urlparams = "?" + strings.Join(params, "&")
	}

	response, responseBody, err := c.callSource(ctx, http.MethodGet, c.baseURL+endpoint+urlparams, nil)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		contentType := response.Header.Get("Content-Type")
		if response.StatusCode >= http.StatusBadRequest && response.StatusCode <= http.StatusInternalServerError {
			err = errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
			return nil, err
		}

		err = fmt.Errorf("unexpected response code %d (%w)", response.StatusCode, errors.ErrInternal)
		return nil, err
	}

	result := &catalog.Page{}
	err = json.Unmarshal(responseBody, result)
	if err != nil {
		if c.debug && len(responseBody) < 1000 {
			err = fmt.Errorf("unmarshaling of %s failed with err %s (%w)", string(responseBody), err.Error(), errors.ErrBadResponse)
		} else {
			err = fmt.Errorf("failed to unmarshal page: %s (%w)", err.Error(), errors.ErrBadResponse)
		}

		return nil, err
	}

	return result, nil
}

func (c ccClient) RetrieveRecord(ctx context.Context, endpoint string) (types.Record, error) {
	var err error

	ctx, span := tracer.Start(ctx, "retrieve-record",
		trace.WithAttributes(attribute.String(TraceAttributeEndpoint, endpoint)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callSource(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		contentType := response.Header.Get("Content-Type")
		if response.StatusCode >= http.StatusBadRequest && response.StatusCode <= http.StatusInternalServerError {
			err = errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
			return nil, err
		}

		err = fmt.Errorf("unexpected response code %d (%w)", response.StatusCode, errors.ErrInternal)
		return nil, err
	}

	record := types.Record{}
	err = json.Unmarshal(responseBody, &record)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal record: %s (%w)", err.Error(), errors.ErrBadResponse)
		return nil, err
	}

	return record, nil
}

// SubmitAction posts a user action (status change, follow, rating) and
// returns the server confirmed record, which carries the authoritative
// counters.
func (c ccClient) SubmitAction(ctx context.Context, endpoint string, body types.Record) (types.Record, error) {
	var err error

	ctx, span := tracer.Start(ctx, "submit-action",
		trace.WithAttributes(attribute.String(TraceAttributeEndpoint, endpoint)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal action body: %s (%w)", err.Error(), errors.ErrInternal)
	}

	response, responseBody, err := c.callSource(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		contentType := response.Header.Get("Content-Type")
		if response.StatusCode >= http.StatusBadRequest && response.StatusCode <= http.StatusInternalServerError {
			err = errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
			return nil, err
		}

		err = fmt.Errorf("unexpected response code %d (%w)", response.StatusCode, errors.ErrInternal)
		return nil, err
	}

	record := types.Record{}
	if len(responseBody) > 0 {
		err = json.Unmarshal(responseBody, &record)
		if err != nil {
			err = fmt.Errorf("failed to unmarshal action response: %s (%w)", err.Error(), errors.ErrBadResponse)
			return nil, err
		}
	}

	return record, nil
}

func (c ccClient) callSource(ctx context.Context, method, endpoint string, body io.Reader) (*http.Response, []byte, error) {
	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	req.Header.Add("Accept", "application/json")
	if body != nil {
		req.Header.Add("Content-Type", "application/json")
	}

	if c.token != "" {
		req.Header.Add("Authorization", "Bearer "+c.token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %s (%w)", err.Error(), errors.ErrRequest)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	if c.debug {
		if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
			reqbytes, _ := httputil.DumpRequest(req, false)
			respbytes, _ := httputil.DumpResponse(resp, false)

			log := logging.GetFromContext(ctx)
			log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
		}
	}

	return resp, respBody, nil
}
