package apierror

// Error type URIs following the urn:ecotrack:error:* pattern, used as the
// "type" field of a problem response
const (
	// TypeValidation indicates request validation failed (400)
	TypeValidation = "urn:ecotrack:error:validation"

	// TypeBadRequest indicates a malformed request body (400)
	TypeBadRequest = "urn:ecotrack:error:bad_request"

	// TypeUnauthorized indicates missing or invalid authentication (401)
	TypeUnauthorized = "urn:ecotrack:error:unauthorized"

	// TypeNotFound indicates the requested resource was not found (404)
	TypeNotFound = "urn:ecotrack:error:not_found"

	// TypeChallengeClosed indicates progress was reported against a
	// completed or expired challenge (409)
	TypeChallengeClosed = "urn:ecotrack:error:challenge_closed"

	// TypeRateLimit indicates too many requests (429)
	TypeRateLimit = "urn:ecotrack:error:rate_limit"

	// TypeInternal indicates an unexpected server error (500)
	TypeInternal = "urn:ecotrack:error:internal"
)

const (
	TitleValidation      = "Validation Error"
	TitleBadRequest      = "Bad Request"
	TitleUnauthorized    = "Authentication Required"
	TitleNotFound        = "Resource Not Found"
	TitleChallengeClosed = "Challenge Closed"
	TitleRateLimit       = "Rate Limit Exceeded"
	TitleInternal        = "Internal Server Error"
)
