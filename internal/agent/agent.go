package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	agent_api "github.com/cinematch/core/internal/agent/api"
	agent_channel "github.com/cinematch/core/internal/agent/channel"
	http_match "github.com/cinematch/core/internal/delivery/http/match"
	ws_events "github.com/cinematch/core/internal/delivery/ws/events"
	"github.com/cinematch/core/internal/model"
)

type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateVoting    State = "voting"
	StateDecided   State = "decided"
	StateExhausted State = "exhausted"
	StateError     State = "error"
)

func (s State) Terminal() bool {
	return s == StateDecided || s == StateExhausted || s == StateError
}

var (
	ErrTerminalState = errors.New("session is in a terminal state")
	ErrNotVoting     = errors.New("not in voting state")
)

type API interface {
	Recommendations(ctx context.Context, groupID model.GroupID) ([]http_match.MovieMetaDTO, error)
	Session(ctx context.Context, groupID model.GroupID) (*http_match.SessionResponseDTO, error)
	Vote(ctx context.Context, groupID model.GroupID, movieID string, liked bool) (*http_match.MovieMetaDTO, error)
}

type EventChannel interface {
	Connect(ctx context.Context) error
	JoinRoom(room string) error
	On(event string, handler agent_channel.Handler)
	Close() error
}

// Agent drives one user's walk through a matching session: fetch the
// queue once, vote candidate by candidate, converge on the winner no
// matter whether it arrives in a vote response or over the event
// channel.
type Agent struct {
	api     API
	channel EventChannel
	groupID model.GroupID
	room    string

	logger   *slog.Logger
	onChange func(State)

	mu     sync.Mutex
	state  State
	queue  []http_match.MovieMetaDTO
	cursor int
	winner *http_match.MovieMetaDTO
	err    error
}

type Option func(*Agent)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		a.logger = logger
	}
}

// WithStateListener registers a callback fired on every state change.
// Called outside the agent's lock.
func WithStateListener(fn func(State)) Option {
	return func(a *Agent) {
		a.onChange = fn
	}
}

func New(api API, channel EventChannel, groupID model.GroupID, room string, opts ...Option) *Agent {
	a := &Agent{
		api:     api,
		channel: channel,
		groupID: groupID,
		room:    room,
		logger:  slog.Default(),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start pulls the candidate queue and wires up the event channel. A
// channel failure is logged, not fatal: votes still flow over HTTP and
// the caller may Reconnect later.
func (a *Agent) Start(ctx context.Context) error {
	a.setState(StateLoading)

	queue, err := a.api.Recommendations(ctx, a.groupID)
	if err != nil {
		a.fail(fmt.Errorf("fetching recommendations: %w", err))
		return err
	}

	a.mu.Lock()
	a.queue = queue
	a.cursor = 0
	a.mu.Unlock()

	a.channel.On(ws_events.EventWinnerDecided, a.handleWinnerDecided)
	a.channel.On(ws_events.EventGroupUpdated, a.handleGroupUpdated)

	if err := a.Reconnect(ctx); err != nil {
		a.logger.Warn("event channel unavailable, continuing without push updates",
			slog.String("error", err.Error()))
	}

	a.setState(StateVoting)
	return nil
}

// Reconnect (re)establishes the event channel and re-joins the user
// room. Subscriptions are not restored by the transport on its own.
func (a *Agent) Reconnect(ctx context.Context) error {
	if err := a.channel.Connect(ctx); err != nil {
		return err
	}
	return a.channel.JoinRoom(a.room)
}

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

func (a *Agent) Winner() *http_match.MovieMetaDTO {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.winner
}

// Current returns the candidate under the cursor.
func (a *Agent) Current() (http_match.MovieMetaDTO, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateVoting || a.cursor >= len(a.queue) {
		return http_match.MovieMetaDTO{}, false
	}
	return a.queue[a.cursor], true
}

// VoteCurrent submits a ballot for the cursor's candidate. The lock is
// not held across the request, so a winnerDecided push can land while
// the vote is in flight; whichever side sets Decided first wins and
// the other becomes a no-op.
func (a *Agent) VoteCurrent(ctx context.Context, liked bool) error {
	a.mu.Lock()
	if a.state.Terminal() {
		a.mu.Unlock()
		return ErrTerminalState
	}
	if a.state != StateVoting || a.cursor >= len(a.queue) {
		a.mu.Unlock()
		return ErrNotVoting
	}
	candidate := a.queue[a.cursor]
	voted := a.cursor
	a.mu.Unlock()

	winner, err := a.api.Vote(ctx, a.groupID, candidate.ID, liked)
	if err != nil {
		switch {
		case errors.Is(err, agent_api.ErrExhausted):
			a.setState(StateExhausted)
			return nil
		case errors.Is(err, agent_api.ErrInvalidVote):
			// Usually means the session got decided under us; the
			// authoritative snapshot settles it.
			if rerr := a.Resync(ctx); rerr == nil && a.State() == StateDecided {
				return nil
			}
			return err
		default:
			// Transient failure: stay on the same candidate for retry.
			return err
		}
	}

	if winner != nil {
		a.decide(*winner)
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// A push may have resolved the session while the request was in
	// flight. The cursor also never moves backwards.
	if a.state != StateVoting || a.cursor != voted {
		return nil
	}
	a.cursor++
	if a.cursor >= len(a.queue) {
		a.state = StateExhausted
		go a.notify(StateExhausted)
	}
	return nil
}

// Resync re-fetches the authoritative session, adopting a winner
// decided while this client was out of touch and skipping candidates
// it already balloted.
func (a *Agent) Resync(ctx context.Context) error {
	snapshot, err := a.api.Session(ctx, a.groupID)
	if err != nil {
		return err
	}

	if snapshot.Winner != nil {
		a.decide(*snapshot.Winner)
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateVoting {
		return nil
	}
	for a.cursor < len(a.queue) {
		if _, ok := snapshot.YourBallots[a.queue[a.cursor].ID]; !ok {
			break
		}
		a.cursor++
	}
	if a.cursor >= len(a.queue) {
		a.state = StateExhausted
		go a.notify(StateExhausted)
	}
	return nil
}

// Close tears down the event channel. Authoritative session state is
// untouched; an in-flight vote still lands on the server.
func (a *Agent) Close() error {
	return a.channel.Close()
}

func (a *Agent) handleWinnerDecided(payload json.RawMessage) {
	var winner http_match.MovieMetaDTO
	if err := json.Unmarshal(payload, &winner); err != nil {
		a.logger.Warn("bad winnerDecided payload", slog.String("error", err.Error()))
		return
	}
	a.decide(winner)
}

func (a *Agent) handleGroupUpdated(payload json.RawMessage) {
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return
	}
	a.logger.Info("group updated", slog.String("message", msg.Message))
}

// decide moves the agent to Decided. Idempotent: the synchronous vote
// response and the asynchronous push may both deliver the same winner
// in either order. Exhausted is the one terminal state decide may
// leave: a winner arriving late still converges the session.
func (a *Agent) decide(winner http_match.MovieMetaDTO) {
	a.mu.Lock()
	if a.state == StateDecided || a.state == StateError {
		a.mu.Unlock()
		return
	}
	a.state = StateDecided
	a.winner = &winner
	a.mu.Unlock()

	a.logger.Info("session decided",
		slog.String("group_id", string(a.groupID)),
		slog.String("title", winner.Title))
	a.notify(StateDecided)
}

func (a *Agent) fail(err error) {
	a.mu.Lock()
	if a.state.Terminal() {
		a.mu.Unlock()
		return
	}
	a.state = StateError
	a.err = err
	a.mu.Unlock()
	a.notify(StateError)
}

// setState performs a non-terminal transition. A terminal state is
// never left this way, so a winnerDecided push landing mid-Start (or
// mid-vote) cannot be overwritten back to voting or exhausted.
func (a *Agent) setState(s State) {
	a.mu.Lock()
	if a.state.Terminal() {
		a.mu.Unlock()
		return
	}
	a.state = s
	a.mu.Unlock()
	a.notify(s)
}

func (a *Agent) notify(s State) {
	if a.onChange != nil {
		a.onChange(s)
	}
}
