package serviceerr

import "errors"

var ErrConflict = errors.New("already exists")
var ErrNotFound = errors.New("not found")

// Authorization flow errors. Each one maps to a single terminal outcome of
// an authorization attempt and is matched with errors.Is by the HTTP layer.
var ErrCryptoUnavailable = errors.New("secure random generation unavailable")
var ErrProviderDenied = errors.New("authorization denied by provider")
var ErrMissingParameters = errors.New("callback is missing code or state")
var ErrStateNotFound = errors.New("authorization state invalid or expired")
var ErrStateExpired = errors.New("authorization state expired")
var ErrInitiateFailed = errors.New("initiating authorization failed")
var ErrExchangeFailed = errors.New("exchange failed")
var ErrStorageUnavailable = errors.New("authorization storage unavailable")
var ErrServerDisabled = errors.New("server registration is disabled")
