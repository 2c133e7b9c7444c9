package common

// gRPC metadata keys read by the transport.
const (
	// AuthorizationHeaderName carries "Bearer <jwt>".
	AuthorizationHeaderName = "authorization"
	// AccessTokenHeaderName carries a bare JWT for clients that cannot set
	// the authorization header.
	AccessTokenHeaderName = "access_token"
	// CorrelationIDHeaderName lets a client pick the upload correlation ID
	// when the request body leaves it empty.
	CorrelationIDHeaderName = "x-correlation-id"
)
