// Package cache provides a generic in-memory expiring store.
//
// A Store maps string keys to values with an optional per-entry deadline.
// It is the shared backing for the credential-auth cache, the OAuth2
// session store, and the OAuth2 token store. Expired entries are evicted
// lazily on read and in bulk by Sweep.
package cache
