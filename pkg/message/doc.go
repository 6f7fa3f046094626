// Package message implements the wire envelope of the DHT protocol.
//
// A message is a fixed header followed by up to eight typed payload
// items and an optional signature trailer. The header's slot table
// announces the content type of every item up front, so a receiver
// knows the full shape of the message before any payload byte arrives.
//
// # Header Format
//
// Every message starts with a fixed 10-byte prefix, big-endian:
//   - MessageID (2 bytes): random per-request identifier
//   - Version (1 byte): wire protocol version
//   - Slot table (4 bytes): 8 content-type tags, one nibble each
//   - Command (1 byte): DHT operation selector
//   - Type (1 byte): request variant or reply outcome
//
// Two variable-length peer addresses follow, sender then recipient.
// The sender address normally travels without its IP sockets; the
// receiving transport restores them from the observed source endpoint.
//
// # Payload Items
//
// Payload items are serialized in slot order with no per-item framing
// beyond what each format defines: single keys, key collections, data
// maps, key-to-version maps, neighbor sets, integers, byte blocks,
// bloom filters, public keys and socket lists. Collections keyed by
// composite keys have a compact form that states a shared
// location/domain prefix once.
//
// # Signatures
//
// A PUBLIC_KEY_SIGNATURE slot doubles as the sign hint: the slot
// carries the signer's public key, and after the last payload item the
// encoder appends a signature computed over exactly the payload bytes.
// The decoder recomputes it and records the outcome in Verified;
// rejecting unverified messages is the caller's policy.
//
// # Partial Delivery
//
// Encoding streams through an io.Writer in bounded chunks. Decoding is
// resumable: Decoder consumes whatever the accumulator holds, reports
// whether it needs more input and continues from the same position on
// the next call, so a message may arrive across any number of reads.
package message
