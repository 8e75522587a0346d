// Package server owns the TCP side of titpd.
//
// Ownership boundary:
// - listener lifecycle and the bounded worker pool
// - per-connection frame loop, deadlines and teardown
// - routing decoded messages through the processor registry
// - response framing and the close-after-failure rule
//
// The message codec is injected through Codec; processors never see a
// connection.
package server
