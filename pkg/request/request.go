// Package request holds helpers shared by inbound request handling.
package request

const (
	// CorrelationHeader carries a client supplied correlation ID that is reused for logging.
	CorrelationHeader = "X-Dc-Correlation-Id"
	// AuthUserKey is the gin context key of the authenticated user name.
	AuthUserKey = "dav_user"
)
