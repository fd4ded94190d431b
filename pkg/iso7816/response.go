package iso7816

import (
	"errors"
	"fmt"

	"github.com/skythen/apdu"
)

// ErrMalformedResponse indicates bytes that do not form a response APDU.
var ErrMalformedResponse = errors.New("malformed response APDU")

// Response is a response APDU: optional data followed by a status word.
type Response struct {
	Data   []byte
	Status Status
}

// Bytes encodes the response as data ‖ SW1 ‖ SW2.
func (r Response) Bytes() ([]byte, error) {
	rapdu := apdu.Rapdu{Data: r.Data, SW1: r.Status.SW1(), SW2: r.Status.SW2()}
	return rapdu.Bytes()
}

// Err returns the status as an error, or nil on success.
func (r Response) Err() error {
	if r.Status.IsSuccess() {
		return nil
	}
	return r.Status
}

// ParseResponse decodes a response APDU frame.
func ParseResponse(frame []byte) (Response, error) {
	r, err := apdu.ParseRapdu(frame)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return Response{Data: r.Data, Status: NewStatus(r.SW1, r.SW2)}, nil
}

// StatusOnly encodes a bare status word response.
func StatusOnly(s Status) []byte {
	return []byte{s.SW1(), s.SW2()}
}
