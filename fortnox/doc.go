// Package fortnox provides a client for the Fortnox accounting REST API.
//
// Every request passes through a shared sliding-window rate limiter, carries
// a bearer token kept fresh by a TokenManager and has its response status
// checked against the expectation for its verb:
//
//	GET 200, POST 201, PUT 200, DELETE 204
//
// # Usage
//
//	store := credentials.NewMemoryStore(creds)
//	client, err := fortnox.NewClient(store, logger,
//		fortnox.WithRateLimit(5, time.Minute),
//		fortnox.WithTimeout(30*time.Second),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
//	resp, err := client.Invoice(ctx, 42)
//
// # Tokens
//
// Before each request without an explicit token the stored access token is
// checked: it must be present, unexpired and accepted by a probe of the
// companyinformation endpoint. Otherwise the refresh token is exchanged at
// the OAuth endpoint and the new tokens are written back to the store once.
//
// # Error Handling
//
// Failures are typed and matched with errors.Is / errors.As:
//
//   - ErrValidation / *ValidationError: rejected arguments, no request sent
//   - ErrAuthentication / *AuthenticationError: refused token refresh
//   - ErrUnexpectedStatus / *StatusError: status not matching the verb
//   - ErrRateLimited: a *StatusError for HTTP 429, never retried
//
// Transport and store failures are returned wrapped and unclassified.
package fortnox
