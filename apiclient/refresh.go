package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/metrics"
	"github.com/jrsteele09/go-auth-client/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// RefreshState is the state of a RefreshCoordinator.
type RefreshState int

const (
	Idle RefreshState = iota
	Refreshing
)

func (s RefreshState) String() string {
	if s == Refreshing {
		return "refreshing"
	}
	return "idle"
}

// ReplayFunc re-issues a request that failed with an expired credential.
type ReplayFunc func(ctx context.Context, accessToken string) (*http.Response, error)

type pendingResult struct {
	resp *http.Response
	err  error
}

// pendingRequest lives from the moment its 401 is seen until the owning refresh settles.
type pendingRequest struct {
	ctx    context.Context
	replay ReplayFunc
	result chan pendingResult
}

func (p *pendingRequest) onSuccess(accessToken string) {
	resp, err := p.replay(p.ctx, accessToken)
	p.result <- pendingResult{resp: resp, err: err}
}

func (p *pendingRequest) onFailure(err error) {
	p.result <- pendingResult{err: err}
}

// RefreshCoordinator owns the single-flight refresh protocol: at most one refresh call is in flight,
// and every request that observes an expired credential meanwhile waits in its queue.
type RefreshCoordinator struct {
	refresher   Refresher
	store       sessions.Store
	mode        Mode
	timeout     time.Duration
	onRefreshed func(tok *oauth2.Token)
	onFailure   func(ctx context.Context, err error)
	log         zerolog.Logger
	metrics     *metrics.Metrics

	mu      sync.Mutex
	state   RefreshState
	queue   []*pendingRequest
	current string // access token issued by the last successful refresh
	// access tokens this coordinator refreshed away from since the last Reset, newest last
	superseded []string
	// bumped by Reset; an episode started under an older generation belongs to a dropped session
	generation uint64
}

const maxSuperseded = 8

// CoordinatorOption configures a RefreshCoordinator.
type CoordinatorOption func(*RefreshCoordinator)

// OnRefreshed is called with the new token pair after it has been persisted and before any replay starts.
func OnRefreshed(fn func(tok *oauth2.Token)) CoordinatorOption {
	return func(rc *RefreshCoordinator) { rc.onRefreshed = fn }
}

// OnRefreshFailure is called once per failed refresh, after every waiting request was rejected.
func OnRefreshFailure(fn func(ctx context.Context, err error)) CoordinatorOption {
	return func(rc *RefreshCoordinator) { rc.onFailure = fn }
}

// RefreshTimeout bounds each refresh call. Zero leaves it unbounded.
func RefreshTimeout(d time.Duration) CoordinatorOption {
	return func(rc *RefreshCoordinator) { rc.timeout = d }
}

func CoordinatorMode(mode Mode) CoordinatorOption {
	return func(rc *RefreshCoordinator) { rc.mode = mode }
}

func CoordinatorLogger(l zerolog.Logger) CoordinatorOption {
	return func(rc *RefreshCoordinator) { rc.log = l }
}

func CoordinatorMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(rc *RefreshCoordinator) { rc.metrics = m }
}

func NewRefreshCoordinator(refresher Refresher, store sessions.Store, opts ...CoordinatorOption) *RefreshCoordinator {
	rc := &RefreshCoordinator{
		refresher: refresher,
		store:     store,
		log:       log.Logger,
	}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

func (rc *RefreshCoordinator) State() RefreshState {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.state
}

// Reset forgets the refresh history. Call it whenever the session changes hands
// (sign in, sign out) so tokens of the previous session are never replayed.
// An episode still in flight finishes without persisting its result or signing out.
func (rc *RefreshCoordinator) Reset() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.current = ""
	rc.superseded = nil
	rc.generation++
}

func (rc *RefreshCoordinator) wasSuperseded(token string) bool {
	return token != "" && slices.Contains(rc.superseded, token)
}

// Pending returns the number of requests waiting on the in-flight refresh.
func (rc *RefreshCoordinator) Pending() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.queue)
}

// Retry queues a request that failed with staleToken and blocks until the refresh settles.
// The first caller of an episode starts the refresh; later callers only join the queue.
// A request that carried a token this coordinator already refreshed away from is replayed at once.
//
// In ModeTab cancelling ctx releases this caller only; the refresh and the other waiters carry on.
// In ModeServer the caller always waits for the refresh to settle, because the refresh writes
// the new pair to the response of the request that started it.
func (rc *RefreshCoordinator) Retry(ctx context.Context, staleToken string, replay ReplayFunc) (*http.Response, error) {
	p := &pendingRequest{ctx: ctx, replay: replay, result: make(chan pendingResult, 1)}

	rc.mu.Lock()
	if rc.state == Idle && rc.current != "" && rc.wasSuperseded(staleToken) {
		current := rc.current
		rc.mu.Unlock()
		rc.log.Debug().Msg("Refresh: request carried a superseded token, replaying")
		rc.metrics.Replayed()
		return replay(ctx, current)
	}
	rc.queue = append(rc.queue, p)
	queued := len(rc.queue)
	start := rc.state == Idle
	if start {
		rc.state = Refreshing
	}
	gen := rc.generation
	rc.mu.Unlock()

	rc.metrics.PendingRequests(queued)
	if start {
		rc.log.Debug().Msg("Refresh: access token expired, refreshing")
		go rc.refresh(context.WithoutCancel(ctx), staleToken, gen)
	} else {
		rc.log.Debug().Int("pending", queued).Msg("Refresh: already in progress, request queued")
	}

	if rc.mode == ModeServer {
		r := <-p.result
		return r.resp, r.err
	}
	select {
	case r := <-p.result:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// refresh runs one episode. The timeout bounds the refresh call only; the failure
// handling that follows runs on ctx so a sign-out can still be persisted and broadcast.
func (rc *RefreshCoordinator) refresh(ctx context.Context, from string, gen uint64) {
	callCtx := ctx
	if rc.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, rc.timeout)
		defer cancel()
	}

	tok, err := rc.exchange(callCtx, gen)
	if err != nil {
		rc.fail(ctx, gen, err)
		return
	}
	rc.succeed(ctx, tok, from, gen)
}

func (rc *RefreshCoordinator) sameSession(gen uint64) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.generation == gen
}

func (rc *RefreshCoordinator) exchange(ctx context.Context, gen uint64) (*oauth2.Token, error) {
	// The refresh token is read fresh; another tab may have rotated it.
	current, err := rc.store.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("[RefreshCoordinator] reading session: %w", err)
	}

	tok, err := rc.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}
	if !rc.sameSession(gen) {
		return nil, errors.ErrSessionReplaced
	}

	if err := rc.store.SetToken(ctx, tok); err != nil {
		return nil, fmt.Errorf("[RefreshCoordinator] persisting session: %w", err)
	}
	return tok, nil
}

func (rc *RefreshCoordinator) succeed(ctx context.Context, tok *oauth2.Token, from string, gen uint64) {
	rc.mu.Lock()
	if rc.generation != gen {
		rc.mu.Unlock()
		rc.fail(ctx, gen, errors.ErrSessionReplaced)
		return
	}
	queue := rc.queue
	rc.queue = nil
	rc.state = Idle
	rc.current = tok.AccessToken
	if from != "" && from != tok.AccessToken {
		rc.superseded = append(rc.superseded, from)
		if len(rc.superseded) > maxSuperseded {
			rc.superseded = rc.superseded[len(rc.superseded)-maxSuperseded:]
		}
	}
	rc.mu.Unlock()

	if rc.onRefreshed != nil {
		rc.onRefreshed(tok)
	}

	rc.metrics.RefreshDone(metrics.OutcomeSuccess)
	rc.metrics.PendingRequests(0)
	rc.log.Info().Int("replayed", len(queue)).Msg("Refresh: access token refreshed")

	// Replays start in the order they were queued; each completes independently.
	for _, p := range queue {
		rc.metrics.Replayed()
		go p.onSuccess(tok.AccessToken)
	}
}

func (rc *RefreshCoordinator) fail(ctx context.Context, gen uint64, cause error) {
	rc.mu.Lock()
	queue := rc.queue
	rc.queue = nil
	rc.state = Idle
	replaced := rc.generation != gen
	rc.mu.Unlock()

	rc.metrics.RefreshDone(metrics.OutcomeFailure)
	rc.metrics.PendingRequests(0)
	rc.log.Err(cause).Int("rejected", len(queue)).Msg("Refresh: failed")

	err := fmt.Errorf("%w: %w: %w", ErrRefreshFailed, ErrExpiredCredential, cause)
	if rc.mode == ModeServer {
		err = fmt.Errorf("%w: %w", ErrAuthenticationRequired, err)
	}
	for _, p := range queue {
		p.onFailure(err)
	}

	// The session that expired is already gone; signing out now would end its successor.
	if replaced {
		return
	}
	if rc.onFailure != nil {
		rc.onFailure(ctx, cause)
	}
}
