// Package credentials persists the OAuth state used to authenticate against
// the Fortnox API.
//
// A record is keyed by provider name and holds the access token, the refresh
// token, the client identity and secret, and the access token expiry. The
// token manager only ever reads a record and rewrites its three OAuth fields
// after a successful refresh; records are never deleted.
//
// # Backends
//
//   - MongoStore: the "credentials" collection of the "findus" database
//   - FileStore: a JSON file guarded by an flock lock file
//   - KeyringStore: the operating system keychain
//   - RedisStore: one JSON value per provider
//   - MemoryStore: process-local, used in tests and for one-off tokens
//
// FileStore also implements Locker, so concurrent processes sharing the file
// refresh the token one at a time instead of overwriting each other's refresh
// token.
package credentials
