// Package holohash implements the 39-byte typed hashes used to address DNAs
// and agents on the conductor.
//
// A hash is a 3-byte type prefix, a 32-byte core and a 4-byte DHT location
// derived from the core. The textual form is the letter "u" followed by the
// unpadded base64url encoding of all 39 bytes.
package holohash
