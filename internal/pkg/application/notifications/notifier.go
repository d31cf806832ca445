// Package notifications posts entity change notifications to an optional
// webhook endpoint whenever a server confirmed patch lands in the cache,
// so other consumers can refetch what changed.
package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/gamedex/catalog-cache/pkg/catalog/types"
)

type Notifier interface {
	Start() error
	Stop() error

	EntityChanged(ctx context.Context, key types.Key, record types.Record)
}

var tracer = otel.Tracer("catalog-cache/notifier")

type action func()

type notifier struct {
	started  bool
	endpoint string

	queue chan action
}

func NewNotifier(ctx context.Context, endpoint string) (Notifier, error) {
	return &notifier{
		endpoint: endpoint,
		queue:    make(chan action, 32),
	}, nil
}

func (n *notifier) Start() error {
	if n.started {
		return fmt.Errorf("already started")
	}

	n.started = true

	go n.run()

	return nil
}

func (n *notifier) Stop() error {
	if n.started {
		// Create a result channel so that we can wait for completion
		resultChan := make(chan bool)

		n.queue <- func() {
			// close the queue to signal the consumers that we are going out of business
			close(n.queue)
			resultChan <- true
		}

		// blocking read until our action has been processed
		<-resultChan
	}
	return nil
}

func (n *notifier) EntityChanged(ctx context.Context, key types.Key, record types.Record) {
	if n.started {
		var err error

		logger := logging.GetFromContext(ctx)

		ctx, span := tracer.Start(
			tracing.ExtractHeaders(context.Background(), tracing.InjectHeaders(ctx)),
			"post",
		)

		n.queue <- func() {
			defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

			err = postNotification(ctx, key, record, n.endpoint)
			if err != nil {
				logger.Error("failed to post notification", "err", err.Error())
			}
		}
	}
}

func postNotification(ctx context.Context, key types.Key, record types.Record, endpoint string) error {
	notification := struct {
		Entity types.Key    `json:"entity"`
		Fields types.Record `json:"fields"`
	}{
		Entity: key,
		Fields: record,
	}

	body, err := json.MarshalIndent(notification, "", " ")
	if err != nil {
		return fmt.Errorf("marshalling error (%w)", err)
	}

	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("unable to create new request (%w)", err)
	}

	req.Header.Add("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request (%w)", err)
	}

	defer resp.Body.Close()

	return nil
}

func (n *notifier) run() {
	// repeat until the queue is closed
	for action := range n.queue {
		if action == nil {
			return
		}

		action()
	}
}
