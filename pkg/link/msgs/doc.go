// Package msgs defines the wire messages exchanged with remote observers
// of a link. Messages are protobuf encoded and wrapped in Typed, which
// carries the type ID used to decode them.
package msgs
