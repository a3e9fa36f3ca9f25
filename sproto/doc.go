// Package sproto defines the payloads exchanged with the host:
// the host-to-client [Message] kinds, grouped into the large and small
// categories, and the client-to-host [Request] kinds.
//
// Payloads are encoded with package swire.
// Framing (the category tag byte) lives in package sframe.
package sproto
