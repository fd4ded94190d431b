// Package ctaphid defines the CTAPHID command and error vocabulary used on
// the USB HID transport.
//
// Only the message layer is modelled: a command code plus a payload of at
// most MaxMessageSize bytes. Packetization into 64-byte HID reports and
// channel allocation belong to the USB stack and are not handled here.
//
// Vendor commands occupy codes 0x40..0x7F. Applications claim vendor codes
// through their command set; the dispatcher routes by code alone.
package ctaphid
