// Package protocol implements the line-based request/response exchange
// between short-lived clients and the status daemon.
//
// Every exchange uses its own connection:
//
//	client                          server
//	  connect ─────────────────────▶
//	         ◀───────────────────── Ready
//	  FindRepo | GetAllRepos | RemoveRepo ─▶
//	  [path] ──────────────────────▶        (FindRepo, RemoveRepo)
//	         ◀───────────────────── payload (JSON line or Success/Error)
//	  close
//
// Tokens and payloads are single lines terminated by '\n'. Snapshots are
// encoded as one-line JSON objects; an absent snapshot is the JSON literal
// null.
//
// The [Client] never fails because the daemon is unreachable, slow or goes
// away mid-exchange: it logs and returns a default value instead (nil, an
// empty slice or false). Only a peer that violates the exchange after a
// successful handshake produces a [*ProtocolError].
package protocol
