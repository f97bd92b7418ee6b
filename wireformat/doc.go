// Package wireformat implements the uwsgi binary wire format shared by the
// inbound request path and the remote message client.
//
// A frame is a four byte header followed by a payload:
//
//	modifier1 (u8) | size (u16 little endian) | modifier2 (u8) | payload
//
// Tables (request variables, remote message payloads) are encoded as a flat
// sequence of length prefixed pairs:
//
//	len(key) (u16 LE) | key | len(value) (u16 LE) | value
//
// These layouts must stay bit-compatible with other uwsgi peers.
package wireformat
