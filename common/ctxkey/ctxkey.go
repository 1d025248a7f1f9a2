// Package ctxkey centralizes the gin.Context keys used across the gateway
// so handlers and middleware agree on a single set of string constants.
package ctxkey

const (
	// KeyRequestBody caches the raw request body so it can be read more than once.
	KeyRequestBody = "gateway-request-body"
	// ClientRequestPayloadLogged marks that the inbound payload was already logged.
	ClientRequestPayloadLogged = "gateway-client-payload-logged"
	// Principal carries the resolved *policy.Principal for the current request.
	Principal = "gateway-principal"
	// APIKey carries the raw bearer/basic credential extracted from Authorization.
	APIKey = "gateway-api-key"
	// RequestType carries the classified adapt.RequestType for the current route.
	RequestType = "gateway-request-type"
	// RequestID is the per-request trace identifier: the inbound X-Request-Id
	// header, or a generated UUID when the header is absent.
	RequestID = "gateway-request-id"
)
