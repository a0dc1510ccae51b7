// Package protocol defines the wire format spoken over the kilnd
// socket.
//
// Every message is a JSON envelope naming a command and carrying an
// optional command-specific payload. Requests and responses share the
// envelope shape: the daemon answers with "ok" and a result payload, or
// with "error" and a diagnostic message.
package protocol
