package common

const (
	// AuthorizationHeaderName carries the bearer access token on HTTP requests
	// and, lower-cased, in gRPC metadata.
	AuthorizationHeaderName = "Authorization"

	// BearerScheme is the only accepted authorization scheme.
	BearerScheme = "Bearer"

	// TokenType is reported to clients alongside issued token pairs.
	TokenType = "bearer"

	AppName    = "snaptrack"
	AppVersion = "1.0.0"
)
