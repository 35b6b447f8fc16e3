// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sink

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/logingest/core"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fastjson"
	"golang.org/x/time/rate"
)

const (
	// DefaultBulkURL is where a local search node listens.
	DefaultBulkURL = "http://localhost:9200"

	// DefaultBulkIndex is the index records are written to.
	DefaultBulkIndex = "my-application"

	// DefaultBulkTimeout bounds a request when the context has no deadline.
	DefaultBulkTimeout = 30 * time.Second

	// maxErrorBody caps how much of a failed response ends up in an error.
	maxErrorBody = 512
)

// BulkConfig configures the bulk sink.
type BulkConfig struct {
	URL      string        // Base URL of the search node
	Index    string        // Target index
	Timeout  time.Duration // Per request when ctx carries no deadline
	Username string        // Basic auth user, empty disables auth
	Password string

	// RequestsPerSecond limits bulk requests. Zero means unlimited.
	RequestsPerSecond float64
	Burst             int
}

// DefaultBulkConfig returns a BulkConfig for a local node.
func DefaultBulkConfig() BulkConfig {
	return BulkConfig{
		URL:     DefaultBulkURL,
		Index:   DefaultBulkIndex,
		Timeout: DefaultBulkTimeout,
		Burst:   1,
	}
}

// Validate checks that the configuration can be used.
func (c BulkConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url cannot be empty", ErrInvalidBulkConfig)
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: url: %w", ErrInvalidBulkConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https, got %q", ErrInvalidBulkConfig, u.Scheme)
	}
	if c.Index == "" {
		return fmt.Errorf("%w: index cannot be empty", ErrInvalidBulkConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout cannot be negative", ErrInvalidBulkConfig)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: requests per second cannot be negative", ErrInvalidBulkConfig)
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		return fmt.Errorf("%w: burst must be at least 1 when rate limited", ErrInvalidBulkConfig)
	}
	return nil
}

// BulkOption configures a Bulk sink.
type BulkOption func(*Bulk)

// WithBulkLogger sets the logger.
func WithBulkLogger(logger *slog.Logger) BulkOption {
	return func(b *Bulk) {
		b.logger = logger
	}
}

// WithHTTPClient replaces the fasthttp client, mostly for tests.
func WithHTTPClient(client *fasthttp.Client) BulkOption {
	return func(b *Bulk) {
		b.client = client
	}
}

// Bulk writes batches to a search index through the _bulk NDJSON endpoint.
// Each record becomes an index action keyed by its content ID.
type Bulk struct {
	config   BulkConfig
	endpoint string
	auth     string
	client   *fasthttp.Client
	limiter  *rate.Limiter
	arenas   fastjson.ArenaPool
	parsers  fastjson.ParserPool
	logger   *slog.Logger
}

var _ Sink = (*Bulk)(nil)

// NewBulk creates a bulk sink.
func NewBulk(config BulkConfig, opts ...BulkOption) (*Bulk, error) {
	if config.Timeout == 0 {
		config.Timeout = DefaultBulkTimeout
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Bulk{
		config:   config,
		endpoint: strings.TrimRight(config.URL, "/") + "/_bulk",
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.client == nil {
		b.client = &fasthttp.Client{
			Name:                "logingest",
			MaxConnsPerHost:     64,
			MaxIdleConnDuration: time.Minute,
		}
	}
	if config.RequestsPerSecond > 0 {
		b.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
	}
	if config.Username != "" {
		b.auth = "Basic " + base64.StdEncoding.EncodeToString([]byte(config.Username+":"+config.Password))
	}
	b.logger = b.logger.With("component", "bulk-sink", "index", config.Index)
	return b, nil
}

// Write sends the batch as one bulk request.
// A request the node accepts with item errors returns a *BulkError.
func (b *Bulk) Write(ctx context.Context, batch []core.Record) error {
	if len(batch) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(b.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-ndjson")
	if b.auth != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, b.auth)
	}
	req.SetBodyRaw(b.encode(batch))

	start := time.Now()
	if err := b.do(ctx, req, resp); err != nil {
		return fmt.Errorf("bulk request: %w", err)
	}

	if code := resp.StatusCode(); code < 200 || code > 299 {
		body := resp.Body()
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return fmt.Errorf("%w: status %d: %s", ErrBulkStatus, code, body)
	}

	if err := b.checkResponse(resp.Body(), len(batch)); err != nil {
		return err
	}
	b.logger.Debug("bulk request accepted", "records", len(batch), "elapsed", time.Since(start))
	return nil
}

// do honors the context deadline; without one the configured timeout applies.
// Cancellation aborts the wait; the request itself runs on private copies
// that are released once the client returns.
func (b *Bulk) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(b.config.Timeout)
	}
	if ctx.Done() == nil {
		return b.client.DoDeadline(req, resp, deadline)
	}

	inflightReq := fasthttp.AcquireRequest()
	inflightResp := fasthttp.AcquireResponse()
	req.CopyTo(inflightReq)

	done := make(chan error, 1)
	go func() {
		done <- b.client.DoDeadline(inflightReq, inflightResp, deadline)
	}()

	select {
	case err := <-done:
		if err == nil {
			inflightResp.CopyTo(resp)
		}
		fasthttp.ReleaseRequest(inflightReq)
		fasthttp.ReleaseResponse(inflightResp)
		return err
	case <-ctx.Done():
		go func() {
			<-done
			fasthttp.ReleaseRequest(inflightReq)
			fasthttp.ReleaseResponse(inflightResp)
		}()
		return ctx.Err()
	}
}

// encode renders the NDJSON body: one action line and one document line per record.
func (b *Bulk) encode(batch []core.Record) []byte {
	a := b.arenas.Get()
	defer b.arenas.Put(a)

	buf := make([]byte, 0, len(batch)*256)
	for _, rec := range batch {
		a.Reset()

		meta := a.NewObject()
		meta.Set("_index", a.NewString(b.config.Index))
		meta.Set("_id", a.NewString(documentID(rec)))
		action := a.NewObject()
		action.Set("index", meta)
		buf = action.MarshalTo(buf)
		buf = append(buf, '\n')

		doc := a.NewObject()
		doc.Set("logFilename", a.NewString(rec.SourceFile))
		doc.Set("ownerId", a.NewString(rec.OwnerID))
		doc.Set("taskId", a.NewString(rec.TaskID))
		doc.Set("timeStamp", a.NewString(rec.Timestamp.Format(time.RFC3339Nano)))
		doc.Set("logLevel", a.NewString(rec.LogLevel))
		doc.Set("threadId", a.NewNumberInt(rec.ThreadID))
		doc.Set("className", a.NewString(rec.ClassName))
		doc.Set("methodName", a.NewString(rec.MethodName))
		doc.Set("message", a.NewString(rec.Message))
		buf = doc.MarshalTo(buf)
		buf = append(buf, '\n')
	}
	return buf
}

func (b *Bulk) checkResponse(body []byte, total int) error {
	p := b.parsers.Get()
	defer b.parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBulkResponse, err)
	}
	if !v.GetBool("errors") {
		return nil
	}

	bulkErr := &BulkError{Total: total}
	for _, item := range v.GetArray("items") {
		// Each item is keyed by its action name.
		obj, err := item.Object()
		if err != nil {
			continue
		}
		obj.Visit(func(_ []byte, result *fastjson.Value) {
			if result.Get("error") == nil {
				return
			}
			bulkErr.Failed = append(bulkErr.Failed, ItemFailure{
				DocumentID: string(result.GetStringBytes("_id")),
				Status:     result.GetInt("status"),
				Type:       string(result.GetStringBytes("error", "type")),
				Reason:     errorReason(result.Get("error")),
			})
		})
	}
	b.logger.Warn("bulk request rejected items", "failed", len(bulkErr.Failed), "total", total)
	return bulkErr
}

func errorReason(v *fastjson.Value) string {
	if v.Type() == fastjson.TypeString {
		return string(v.GetStringBytes())
	}
	return string(v.GetStringBytes("reason"))
}

func documentID(rec core.Record) string {
	return strconv.FormatUint(uint64(rec.ID()), 16)
}
