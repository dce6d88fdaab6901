package client

import (
	"context"
	"errors"
	"sync"

	"membership-service/internal/models"
)

// ErrToggleInFlight is returned when a toggle for the same video has not
// finished yet.
var ErrToggleInFlight = errors.New("like toggle already in flight")

// ErrClosed is returned once the controller has been closed.
var ErrClosed = errors.New("like controller closed")

// LikeMessage is shown when a toggle cannot be saved.
const LikeMessage = "Couldn't update like. Please try again."

// LikeAPI is the backend half of the toggle.
type LikeAPI interface {
	ToggleLike(ctx context.Context, videoID string) (models.LikeResult, error)
}

// Notifier surfaces transient messages (toasts) to the user.
type Notifier interface {
	Error(message string)
}

// LikeState is what the surface renders for one video.
type LikeState struct {
	Liked bool
	Count int
}

// LikeController applies like toggles optimistically. The previous state of
// each video is kept until the backend answers and restored on failure.
// Failed toggles are not retried.
type LikeController struct {
	api      LikeAPI
	notifier Notifier

	mu     sync.Mutex
	states map[string]LikeState
	undo   map[string]LikeState
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewLikeController constructs a LikeController for one screen.
func NewLikeController(api LikeAPI, notifier Notifier) *LikeController {
	ctx, cancel := context.WithCancel(context.Background())
	return &LikeController{
		api:      api,
		notifier: notifier,
		states:   map[string]LikeState{},
		undo:     map[string]LikeState{},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Set seeds the state of a video, typically from a feed page.
func (c *LikeController) Set(videoID string, state LikeState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[videoID] = state
}

// State returns the rendered state of a video.
func (c *LikeController) State(videoID string) LikeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[videoID]
}

// Toggle flips the like locally, then asks the backend. It returns the state
// after the backend answered: the server's values on success, the restored
// previous state on failure.
func (c *LikeController) Toggle(videoID string) (LikeState, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return LikeState{}, ErrClosed
	}
	prev := c.states[videoID]
	if _, busy := c.undo[videoID]; busy {
		c.mu.Unlock()
		return prev, ErrToggleInFlight
	}
	c.undo[videoID] = prev
	c.states[videoID] = flip(prev)
	ctx := c.ctx
	c.mu.Unlock()

	res, err := c.api.ToggleLike(ctx, videoID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return LikeState{}, ErrClosed
	}
	delete(c.undo, videoID)
	if err != nil {
		c.states[videoID] = prev
		if c.notifier != nil {
			c.notifier.Error(LikeMessage)
		}
		return prev, err
	}
	next := LikeState{Liked: res.Liked, Count: res.NewCount}
	c.states[videoID] = next
	return next, nil
}

// Close cancels outstanding calls; their results are dropped.
func (c *LikeController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancel()
}

func flip(s LikeState) LikeState {
	if s.Liked {
		if s.Count > 0 {
			s.Count--
		}
	} else {
		s.Count++
	}
	s.Liked = !s.Liked
	return s
}
