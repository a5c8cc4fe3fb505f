// Package fragment loads server-rendered status fragments into caller-owned
// targets.
//
// A Loader issues one GET per call and writes the raw response body into the
// target when the response arrives. Calls are independent: there is no
// caching, retry, or ordering between them, so when several loads race for the
// same target the response that completes last wins.
package fragment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	// DefaultNetwork is the player network used when none is configured.
	DefaultNetwork = "facebook"

	// DefaultPageURL is the document location relative paths resolve against.
	DefaultPageURL = "http://localhost:8080/"

	// PartialRequestHeader asks htmx-aware servers for the partial fragment
	// instead of a full page.
	PartialRequestHeader = "HX-Request"

	tracerName = "github.com/louisbranch/statusfrag/internal/fragment"
)

// ErrInvalidPageURL is returned when the page URL cannot anchor relative
// fragment paths.
var ErrInvalidPageURL = errors.New("page url must be absolute")

// Target is a caller-owned region whose content the loader replaces.
//
// Implementations must tolerate SetHTML calls from multiple goroutines.
type Target interface {
	SetHTML(markup string)
}

// TargetFunc adapts a function to Target.
type TargetFunc func(markup string)

// SetHTML calls f(markup).
func (f TargetFunc) SetHTML(markup string) {
	f(markup)
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Loader.
type Config struct {
	// PageURL is the absolute URL of the page hosting the targets.
	PageURL string
	// BasePath is prefixed verbatim to every identifier. Defaults to the
	// status path of DefaultNetwork.
	BasePath string
	// Client sends the GET requests. Defaults to an http.Client without a
	// timeout.
	Client Doer
	Logger *zap.Logger
	Tracer trace.Tracer
}

// Loader fetches status fragments. It holds only immutable configuration
// and is safe for concurrent use.
type Loader struct {
	page     *url.URL
	basePath string
	client   Doer
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewLoader builds a Loader from cfg, applying defaults for unset fields.
func NewLoader(cfg Config) (*Loader, error) {
	pageURL := strings.TrimSpace(cfg.PageURL)
	if pageURL == "" {
		pageURL = DefaultPageURL
	}
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	if !page.IsAbs() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPageURL, pageURL)
	}

	basePath := cfg.BasePath
	if basePath == "" {
		basePath = StatusPath(DefaultNetwork, "")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Loader{
		page:     page,
		basePath: basePath,
		client:   client,
		logger:   logger,
		tracer:   tracer,
	}, nil
}

// StatusPath returns the relative status endpoint path for a player on the
// given network. An empty id yields the base path for that network.
func StatusPath(network, id string) string {
	return "api/status/" + network + "/" + id
}

// URL reports the absolute URL a load for id requests. An id that is not a
// valid URL reference on its own (a stray "%", for instance) is path-escaped.
func (l *Loader) URL(id string) (string, error) {
	u, err := l.page.Parse(l.basePath + id)
	if err != nil {
		u, err = l.page.Parse(l.basePath + url.PathEscape(id))
	}
	if err != nil {
		return "", fmt.Errorf("resolve fragment url: %w", err)
	}
	return u.String(), nil
}

// Load replaces target's content with the fragment for id.
//
// An empty id clears target before Load returns and issues no request.
// Otherwise Load starts one GET and returns immediately; the returned Pending
// resolves once the target has been written or the request has failed. A
// failed request leaves target untouched. Cancelling ctx aborts the request.
func (l *Loader) Load(ctx context.Context, target Target, id string) *Pending {
	p := newPending()
	if id == "" {
		target.SetHTML("")
		p.resolve(Cleared)
		return p
	}

	go func() {
		p.resolve(l.fetch(ctx, target, id))
	}()
	return p
}

func (l *Loader) fetch(ctx context.Context, target Target, id string) Outcome {
	ctx, span := l.tracer.Start(ctx, "fragment.Load",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("fragment.id", id)),
	)
	defer span.End()

	body, err := l.get(ctx, span, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Debug("status fragment not loaded",
			zap.String("id", id),
			zap.Error(err),
		)
		return Unchanged
	}

	target.SetHTML(body)
	l.logger.Debug("status fragment loaded",
		zap.String("id", id),
		zap.Int("bytes", len(body)),
	)
	return Replaced
}

func (l *Loader) get(ctx context.Context, span trace.Span, id string) (string, error) {
	endpoint, err := l.URL(id)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.String("http.url", endpoint))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build fragment request: %w", err)
	}
	req.Header.Set(PartialRequestHeader, "true")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fragment request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fragment request returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read fragment body: %w", err)
	}
	return string(body), nil
}
