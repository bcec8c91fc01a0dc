package repositories

import "errors"

var (
	// ErrNotFound is returned by stores when the requested record does not
	// exist for the given user.
	ErrNotFound = errors.New("not found")

	// ErrContentBlocked is returned by generation backends when the provider
	// refused the input or output on content-policy grounds.
	ErrContentBlocked = errors.New("blocked by content policy")

	// ErrQuotaExceeded is returned by generation backends when the provider
	// rejected the call for quota or capacity reasons.
	ErrQuotaExceeded = errors.New("quota exceeded")
)
