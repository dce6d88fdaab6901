package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"membership-service/internal/apperrors"
	"membership-service/internal/models"
)

type likeAPIMock struct {
	mock.Mock
}

func (m *likeAPIMock) ToggleLike(ctx context.Context, videoID string) (models.LikeResult, error) {
	args := m.Called(ctx, videoID)
	var res models.LikeResult
	if val := args.Get(0); val != nil {
		res = val.(models.LikeResult)
	}
	return res, args.Error(1)
}

type redeemAPIMock struct {
	mock.Mock
}

func (m *redeemAPIMock) RedeemInvite(ctx context.Context, code string) (JoinResult, error) {
	args := m.Called(ctx, code)
	var res JoinResult
	if val := args.Get(0); val != nil {
		res = val.(JoinResult)
	}
	return res, args.Error(1)
}

type toastRecorder struct {
	messages []string
}

func (t *toastRecorder) Error(message string) { t.messages = append(t.messages, message) }

type likeAPIFunc func(ctx context.Context, videoID string) (models.LikeResult, error)

func (f likeAPIFunc) ToggleLike(ctx context.Context, videoID string) (models.LikeResult, error) {
	return f(ctx, videoID)
}

func TestLikeControllerAppliesServerResult(t *testing.T) {
	api := new(likeAPIMock)
	toasts := &toastRecorder{}
	c := NewLikeController(api, toasts)
	c.Set("v1", LikeState{Liked: false, Count: 4})

	api.On("ToggleLike", mock.Anything, "v1").Return(models.LikeResult{Liked: true, NewCount: 7}, nil).Once()

	state, err := c.Toggle("v1")
	require.NoError(t, err)
	assert.Equal(t, LikeState{Liked: true, Count: 7}, state)
	assert.Equal(t, state, c.State("v1"))
	assert.Empty(t, toasts.messages)
	api.AssertExpectations(t)
}

func TestLikeControllerRollsBackOnFailure(t *testing.T) {
	api := new(likeAPIMock)
	toasts := &toastRecorder{}
	c := NewLikeController(api, toasts)
	c.Set("v1", LikeState{Liked: true, Count: 1})

	api.On("ToggleLike", mock.Anything, "v1").Return(nil, errors.New("offline")).Once()

	state, err := c.Toggle("v1")
	require.EqualError(t, err, "offline")
	assert.Equal(t, LikeState{Liked: true, Count: 1}, state)
	assert.Equal(t, LikeState{Liked: true, Count: 1}, c.State("v1"))
	assert.Equal(t, []string{LikeMessage}, toasts.messages)
	api.AssertNumberOfCalls(t, "ToggleLike", 1)
}

func TestLikeControllerOptimisticStateWhileInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	api := likeAPIFunc(func(ctx context.Context, videoID string) (models.LikeResult, error) {
		close(started)
		<-release
		return models.LikeResult{Liked: true, NewCount: 1}, nil
	})
	c := NewLikeController(api, nil)

	done := make(chan LikeState)
	go func() {
		state, _ := c.Toggle("v1")
		done <- state
	}()
	<-started

	assert.Equal(t, LikeState{Liked: true, Count: 1}, c.State("v1"))
	_, err := c.Toggle("v1")
	require.ErrorIs(t, err, ErrToggleInFlight)

	close(release)
	assert.Equal(t, LikeState{Liked: true, Count: 1}, <-done)
}

func TestLikeControllerIgnoresResultAfterClose(t *testing.T) {
	started := make(chan struct{})
	api := likeAPIFunc(func(ctx context.Context, videoID string) (models.LikeResult, error) {
		close(started)
		<-ctx.Done()
		return models.LikeResult{}, ctx.Err()
	})
	toasts := &toastRecorder{}
	c := NewLikeController(api, toasts)

	errs := make(chan error)
	go func() {
		_, err := c.Toggle("v1")
		errs <- err
	}()
	<-started
	c.Close()

	require.ErrorIs(t, <-errs, ErrClosed)
	assert.Empty(t, toasts.messages)

	_, err := c.Toggle("v1")
	require.ErrorIs(t, err, ErrClosed)
}

func TestFlipNeverGoesNegative(t *testing.T) {
	assert.Equal(t, LikeState{Liked: false, Count: 0}, flip(LikeState{Liked: true, Count: 0}))
	assert.Equal(t, LikeState{Liked: true, Count: 1}, flip(LikeState{}))
}

func TestInviteRedeemerRetriesConflictOnce(t *testing.T) {
	api := new(redeemAPIMock)
	r := NewInviteRedeemer(api, time.Millisecond)

	api.On("RedeemInvite", mock.Anything, "AbCdEf1234").Return(nil, apperrors.ErrConflict).Once()
	api.On("RedeemInvite", mock.Anything, "AbCdEf1234").Return(JoinResult{MemberCount: 3}, nil).Once()

	res, err := r.Redeem(context.Background(), "vidgroups://join?code=AbCdEf1234")
	require.NoError(t, err)
	assert.Equal(t, 3, res.MemberCount)
	api.AssertExpectations(t)
}

func TestInviteRedeemerGivesUpAfterSecondConflict(t *testing.T) {
	api := new(redeemAPIMock)
	r := NewInviteRedeemer(api, time.Millisecond)

	api.On("RedeemInvite", mock.Anything, "AbCdEf1234").Return(nil, apperrors.ErrConflict).Twice()

	_, err := r.Redeem(context.Background(), "AbCdEf1234")
	require.ErrorIs(t, err, apperrors.ErrConflict)
	api.AssertNumberOfCalls(t, "RedeemInvite", 2)
}

func TestInviteRedeemerDoesNotRetryOtherErrors(t *testing.T) {
	api := new(redeemAPIMock)
	r := NewInviteRedeemer(api, time.Millisecond)

	api.On("RedeemInvite", mock.Anything, "AbCdEf1234").Return(nil, apperrors.ErrInviteExhausted).Once()

	_, err := r.Redeem(context.Background(), "https://example.com/join?code=AbCdEf1234")
	require.ErrorIs(t, err, apperrors.ErrInviteExhausted)
	api.AssertNumberOfCalls(t, "RedeemInvite", 1)

	_, err = r.Redeem(context.Background(), "https://example.com/join")
	require.ErrorIs(t, err, apperrors.ErrInvalidInvite)
	api.AssertNumberOfCalls(t, "RedeemInvite", 1)
}

func TestAPIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/invites/redeem":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["code"] == "TAKEN00000" {
				w.WriteHeader(http.StatusGone)
				_ = json.NewEncoder(w).Encode(map[string]any{"error": "invite exhausted", "code": "invite_exhausted"})
				return
			}
			_ = json.NewEncoder(w).Encode(JoinResult{MemberCount: 2, Membership: models.Membership{GroupID: "g1"}})
		case "/videos/v1/like":
			_ = json.NewEncoder(w).Encode(models.LikeResult{Liked: true, NewCount: 5})
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "boom", "code": "internal"})
		}
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/", "tok", srv.Client())
	ctx := context.Background()

	res, err := c.RedeemInvite(ctx, "GOOD000000")
	require.NoError(t, err)
	assert.Equal(t, 2, res.MemberCount)
	assert.Equal(t, "g1", res.Membership.GroupID)

	_, err = c.RedeemInvite(ctx, "TAKEN00000")
	require.ErrorIs(t, err, apperrors.ErrInviteExhausted)

	like, err := c.ToggleLike(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, models.LikeResult{Liked: true, NewCount: 5}, like)

	_, err = c.ToggleLike(ctx, "v2")
	require.EqualError(t, err, "boom")
}
