// Package refresh tracks which refresh tokens are still honoured.
//
// # Key layout
//
//   - refresh_token:{uid}:{hash}:{createdUnixNano} = "valid", TTL = token lifetime
//   - blacklist:refresh:{hash} = uid, TTL = remaining lifetime at revocation
//
// {hash} is the hex SHA-256 of the token, or its HMAC-SHA256 when a hash key is
// configured. Plaintext tokens are never written.
//
// # Capacity
//
// [Store] keeps at most [MaxTokensPerIdentity] records per identity. Adding
// one more evicts the oldest by embedded timestamp. Under concurrent adds the
// cap can be exceeded briefly; the next add converges it.
//
// # Architecture boundaries
//
// Both types sit on [kv.Store]; they never decode tokens. Signature and expiry
// checks belong to the jwt package.
package refresh
