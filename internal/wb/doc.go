// Package wb is the Wildberries client: new orders and stickers from the
// marketplace API, product cards from the content API.
//
// Every call runs under a per-attempt timeout and the retry policy from the
// [wildberries] config section. Responses are classified with the services
// markers: 429 is ErrRateLimited (honouring Retry-After), 401 and 403 are
// ErrAuth and never retried, transport failures and 5xx are ErrNetwork.
package wb
