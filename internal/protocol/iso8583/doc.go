// Package iso8583 owns the bitmap-indexed message codec.
//
// Ownership boundary:
// - MTI, bitmap and field wire encodings (binary and ASCII variants)
// - typed field values and the Message container
// - field definition schema loading
//
// The codec is injected into the server through server.Codec; nothing in
// this package knows about connections, framing or business rules.
package iso8583
