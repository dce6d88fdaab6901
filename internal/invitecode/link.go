package invitecode

import (
	"fmt"
	"net/url"
	"strings"

	"membership-service/internal/apperrors"
)

// QueryParam is the deep-link query parameter holding the invite code.
const QueryParam = "code"

// BuildLink returns base with the code set as a query parameter.
// base may use any scheme, e.g. https://app.example.com/join or vidgroups://join.
func BuildLink(base, code string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse invite base url: %w", err)
	}
	q := u.Query()
	q.Set(QueryParam, code)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExtractCode pulls the invite code out of a deep link. A bare code is
// accepted as-is. Anything that does not carry a well-formed code is
// reported as apperrors.ErrInvalidInvite.
func ExtractCode(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if Valid(raw) {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: malformed link", apperrors.ErrInvalidInvite)
	}
	code := u.Query().Get(QueryParam)
	if !Valid(code) {
		return "", fmt.Errorf("%w: link carries no code", apperrors.ErrInvalidInvite)
	}
	return code, nil
}
