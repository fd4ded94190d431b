// Package iso7816 defines the ISO/IEC 7816-4 vocabulary used on the
// smartcard transport: command and response APDUs, instruction codes,
// status words and application identifiers.
//
// Frames are parsed and serialized with github.com/skythen/apdu; this
// package adds the interpretation layer the dispatcher needs (chaining,
// SELECT detection, status words as errors).
//
// # Status Words
//
// A Status is both a status word and an error, so applications can
// return it directly:
//
//	if len(data) != 64 {
//	    return iso7816.StatusIncorrectDataParameter
//	}
//
// StatusSuccess is never returned as an error.
package iso7816
