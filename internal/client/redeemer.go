package client

import (
	"context"
	"math/rand"
	"time"

	"membership-service/internal/apperrors"
	"membership-service/internal/invitecode"
)

// RedeemAPI is the backend redemption call.
type RedeemAPI interface {
	RedeemInvite(ctx context.Context, code string) (JoinResult, error)
}

// InviteRedeemer turns a scanned or tapped deep link into a membership.
type InviteRedeemer struct {
	api       RedeemAPI
	baseDelay time.Duration
	jitter    func(max time.Duration) time.Duration
}

// NewInviteRedeemer constructs an InviteRedeemer. A conflicting redemption is
// retried once after baseDelay plus up to baseDelay of jitter.
func NewInviteRedeemer(api RedeemAPI, baseDelay time.Duration) *InviteRedeemer {
	return &InviteRedeemer{
		api:       api,
		baseDelay: baseDelay,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return time.Duration(rand.Int63n(int64(max)))
		},
	}
}

// Redeem extracts the code from rawLink and redeems it.
func (r *InviteRedeemer) Redeem(ctx context.Context, rawLink string) (JoinResult, error) {
	code, err := invitecode.ExtractCode(rawLink)
	if err != nil {
		return JoinResult{}, err
	}

	res, err := r.api.RedeemInvite(ctx, code)
	if !apperrors.Retryable(err) {
		return res, err
	}

	timer := time.NewTimer(r.baseDelay + r.jitter(r.baseDelay))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return JoinResult{}, ctx.Err()
	case <-timer.C:
	}
	return r.api.RedeemInvite(ctx, code)
}
