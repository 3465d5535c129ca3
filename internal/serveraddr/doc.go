// Package serveraddr turns the free-form address a user types into a setup
// form into a parsed host and port, and derives the title and stable key of
// the configuration entry for that server.
//
// Parsing never fails. Malformed input degrades to host = input and the
// default port. Identity resolution performs at most one service-record
// lookup, only for symbolic host names, and treats a failed or abandoned
// lookup as "no record".
//
// Example:
//
//	addr := serveraddr.Parse("Play.Example.com:25570", 25565)
//	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
//	defer cancel()
//	id := serveraddr.ResolveIdentity(ctx, addr, serveraddr.NewNetServiceLookup(nil))
package serveraddr
