package common

// AuthorizationHeaderName carries the bearer access token on inbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// RequestIDHeaderName carries the request id; it is echoed on responses and
// generated when the caller sends none.
const RequestIDHeaderName = "X-Request-ID"
