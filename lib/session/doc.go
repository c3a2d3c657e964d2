// Package session implements the authentication bootstrap on top of an
// rpc/client.RPCClient. It adds no protocol of its own, everything is a
// plain request or subscription:
//
//   - SetSession <token>  -> session | null | false   (on every Connected)
//   - GetClientToken      -> {"token": "..."}          (start of a login)
//   - Session push        <- {"id", "userId", "expiresDate"}
//   - GetMyRoles, ReadUser                             (after auth turned true)
//   - Logout              (fire-and-forget)
//
// The token is kept in a TokenStore (memory or JSON file). Auth, User and
// Roles are replay-last signals, new subscribers get the current value first.
package session
