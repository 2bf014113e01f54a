package reporter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"

	"github.com/MightyToolkit/vigil-reporter/internal/client"
	"github.com/MightyToolkit/vigil-reporter/internal/config"
	"github.com/MightyToolkit/vigil-reporter/internal/metrics"
)

var ErrAlreadyStopped = errors.New("reporter already stopped")

// LoadSampler provides the host load for one report.
type LoadSampler interface {
	SampleLoad(ctx context.Context) (metrics.LoadSample, error)
}

// Poster delivers a payload to the Vigil endpoint.
type Poster interface {
	PostReport(ctx context.Context, endpoint string, payload *metrics.ReportPayload) (*client.Response, error)
}

// RequestFailedError means Vigil was reached and rejected the report with a
// 4xx status. Sending the same report again will not help.
type RequestFailedError struct {
	StatusCode int
	Body       string
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("server responded with %d: %s; giving up permanently", e.StatusCode, e.Body)
}

// Reporter pushes the host load to one Vigil node every interval.
//
// Each cycle is run on a single-worker pool and schedules the next one only
// after it has finished, so cycles never overlap.
type Reporter struct {
	cfg     config.Config
	sampler LoadSampler
	poster  Poster
	logger  log.FieldLogger
	pool    *ants.Pool

	stopRequested atomic.Bool
	done          chan struct{}
	doneOnce      sync.Once
	err           error
}

type Option func(*Reporter)

func WithSampler(s LoadSampler) Option {
	return func(r *Reporter) { r.sampler = s }
}

func WithPoster(p Poster) Option {
	return func(r *Reporter) { r.poster = p }
}

func WithLogger(l log.FieldLogger) Option {
	return func(r *Reporter) { r.logger = l }
}

// New validates cfg and builds a Reporter. It does not touch the network.
func New(cfg *config.Config, opts ...Option) (*Reporter, error) {
	if cfg == nil {
		return nil, &config.Error{Field: "config", Reason: "must not be nil"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Reporter{
		cfg:  *cfg,
		done: make(chan struct{}),
	}
	if r.cfg.Timeout <= 0 {
		r.cfg.Timeout = config.Duration(config.DefaultTimeout)
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.sampler == nil {
		r.sampler = metrics.NewSampler()
	}
	if r.poster == nil {
		r.poster = client.NewClient(&r.cfg)
	}
	if r.logger == nil {
		r.logger = log.StandardLogger()
	}
	r.logger = r.logger.WithFields(log.Fields{
		"probe":   r.cfg.ProbeID,
		"node":    r.cfg.NodeID,
		"replica": r.cfg.ReplicaID,
	})
	return r, nil
}

func (r *Reporter) Config() config.Config {
	return r.cfg
}

func (r *Reporter) EndpointURL() string {
	return fmt.Sprintf("%s/reporter/%s/%s/", r.cfg.URL, r.cfg.ProbeID, r.cfg.NodeID)
}

func (r *Reporter) BuildPayload(sample metrics.LoadSample) *metrics.ReportPayload {
	return &metrics.ReportPayload{
		Replica:  r.cfg.ReplicaID,
		Interval: r.cfg.Interval.Seconds(),
		Load: metrics.Load{
			CPU: sample.CPU,
			RAM: sample.Mem,
		},
	}
}

// SendSingleReport samples the load and posts it once.
//
// An unreachable endpoint is logged and reported as false with no error.
// A malformed endpoint URL returns a *config.Error and a 4xx answer returns
// a *RequestFailedError.
func (r *Reporter) SendSingleReport(ctx context.Context) (bool, error) {
	sample, err := r.sampler.SampleLoad(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to sample load: %w", err)
	}
	payload := r.BuildPayload(sample)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout.Std())
	defer cancel()

	endpoint := r.EndpointURL()
	resp, err := r.poster.PostReport(ctx, endpoint, payload)
	if err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			return false, err
		}
		if client.IsTransportError(err) {
			r.logger.Warnf("%s is currently unreachable: %v", endpoint, err)
			return false, nil
		}
		return false, fmt.Errorf("failed to post report: %w", err)
	}
	if resp == nil {
		return false, errors.New("failed to post report: no response")
	}
	return r.HandleResponse(resp)
}

// HandleResponse classifies a Vigil answer. Only 200 counts as success and
// only 4xx is fatal; any other status is logged and retried on the next tick.
func (r *Reporter) HandleResponse(resp *client.Response) (bool, error) {
	switch {
	case resp.StatusCode == http.StatusOK:
		r.logger.Debug("Report accepted")
		return true, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return false, &RequestFailedError{StatusCode: resp.StatusCode, Body: resp.Body}
	default:
		r.logger.Errorf("Server responded with %d: %s", resp.StatusCode, resp.Body)
		return false, nil
	}
}

// Start runs the first report cycle in the background and returns at once.
// Further cycles follow every interval until Stop is called or a fatal
// error ends the loop; Done, Err and Wait expose the outcome.
func (r *Reporter) Start() error {
	select {
	case <-r.done:
		return ErrAlreadyStopped
	default:
	}

	pool, err := ants.NewPool(1, ants.WithLogger(r.logger))
	if err != nil {
		return fmt.Errorf("failed to create report pool: %w", err)
	}
	r.pool = pool

	r.logger.Infof("Reporting to %s every %s", r.EndpointURL(), r.cfg.Interval)
	if err := r.pool.Submit(r.tick); err != nil {
		r.finish(fmt.Errorf("failed to schedule report: %w", err))
		return err
	}
	return nil
}

// Stop asks the loop to end once the current cycle is done. It never
// interrupts a request in flight and may be called any number of times.
func (r *Reporter) Stop() {
	r.stopRequested.Store(true)
}

func (r *Reporter) Done() <-chan struct{} {
	return r.done
}

// Err returns the error that ended the loop, nil after a clean stop or while
// the loop is still running.
func (r *Reporter) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

func (r *Reporter) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reporter) tick() {
	if _, err := r.reportCycle(); err != nil {
		r.logger.Errorf("Reporting stopped: %v", err)
		r.finish(err)
		return
	}
	if r.stopRequested.Load() {
		r.finish(nil)
		return
	}
	time.AfterFunc(r.cfg.Interval.Std(), r.next)
}

func (r *Reporter) next() {
	if r.stopRequested.Load() {
		r.finish(nil)
		return
	}
	if err := r.pool.Submit(r.tick); err != nil {
		r.finish(fmt.Errorf("failed to schedule report: %w", err))
	}
}

// reportCycle runs one report. Errors that retrying cannot fix are returned;
// anything else, panics included, is logged and the loop goes on.
func (r *Reporter) reportCycle() (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Errorf("Unexpected panic during report: %v", p)
			ok, err = false, nil
		}
	}()

	ok, err = r.SendSingleReport(context.Background())
	if err == nil {
		return ok, nil
	}
	if isFatal(err) {
		return false, err
	}
	r.logger.Errorf("Unexpected error during report: %v", err)
	return false, nil
}

func (r *Reporter) finish(err error) {
	r.doneOnce.Do(func() {
		r.err = err
		if err == nil {
			r.logger.Info("Reporting stopped")
		}
		if r.pool != nil {
			r.pool.Release()
		}
		close(r.done)
	})
}

func isFatal(err error) bool {
	var reqErr *RequestFailedError
	var cfgErr *config.Error
	return errors.As(err, &reqErr) || errors.As(err, &cfgErr)
}
