package dispatch

import (
	"errors"

	"github.com/attn-provisioner/provisioner-go/pkg/iso7816"
	"github.com/attn-provisioner/provisioner-go/pkg/log"
)

// RouteAPDU processes one command APDU received on iface and returns the
// response APDU (data ‖ SW1 SW2). Failures are reported in the status word.
func (r *Router) RouteAPDU(iface iso7816.Interface, frame []byte) []byte {
	transport := interfaceTransport(iface)
	var ins uint16
	if len(frame) > 1 {
		ins = uint16(frame[1])
	}
	r.logFrame(transport, log.DirectionIn, frame, ins)

	resp := r.routeAPDU(iface, frame)

	var sw uint16
	if n := len(resp); n >= 2 {
		sw = uint16(resp[n-2])<<8 | uint16(resp[n-1])
	}
	r.logFrame(transport, log.DirectionOut, resp, sw)
	return resp
}

func (r *Router) routeAPDU(iface iso7816.Interface, frame []byte) []byte {
	st := r.state(iface)

	cmd, err := iso7816.ParseCommand(frame)
	if err != nil {
		r.debugLog("malformed APDU", "interface", iface.String(), "error", err)
		st.chain = nil
		st.pending = nil
		return iso7816.StatusOnly(iso7816.StatusWrongLength)
	}

	if cmd.Instruction == iso7816.InsGetResponse && st.chain == nil && st.pending != nil {
		return r.nextResponse(st)
	}
	st.pending = nil

	cmd, ok, sw := r.reassemble(st, cmd)
	if !ok {
		return iso7816.StatusOnly(sw)
	}

	if cmd.IsSelectByName() {
		return r.selectApp(iface, st, cmd)
	}
	if st.selected < 0 {
		r.debugLog("no application selected", "interface", iface.String(), "command", cmd.String())
		return iso7816.StatusOnly(iso7816.StatusCommandNotAllowed)
	}

	data, err := r.apdu[st.selected].Call(iface, cmd)
	return r.respond(iface, st, data, err)
}

// reassemble collects chained commands. It returns the complete command
// with ok set, or the status word to answer with while the chain is open
// or after it broke.
func (r *Router) reassemble(st *interfaceState, cmd iso7816.Command) (iso7816.Command, bool, iso7816.Status) {
	if head := st.chain; head != nil {
		if head.Instruction != cmd.Instruction || head.P1 != cmd.P1 || head.P2 != cmd.P2 {
			r.debugLog("command chain broken", "head", head.String(), "next", cmd.String())
			st.chain = nil
			return cmd, false, iso7816.StatusLastCommandOfChainExpected
		}
		if len(head.Data)+len(cmd.Data) > r.maxCommandData {
			r.debugLog("command chain too long", "have", len(head.Data), "chunk", len(cmd.Data))
			st.chain = nil
			return cmd, false, iso7816.StatusWrongLength
		}
		head.Data = append(head.Data, cmd.Data...)
		if cmd.IsChained() {
			return cmd, false, iso7816.StatusSuccess
		}
		st.chain = nil
		full := *head
		full.Class = cmd.Class
		return full, true, 0
	}

	if len(cmd.Data) > r.maxCommandData {
		return cmd, false, iso7816.StatusWrongLength
	}
	if cmd.IsChained() {
		head := cmd
		head.Class &^= iso7816.ClassChained
		head.Data = append([]byte(nil), cmd.Data...)
		st.chain = &head
		return cmd, false, iso7816.StatusSuccess
	}
	return cmd, true, 0
}

// selectApp selects the first application whose AID matches the SELECT
// data. A failed match leaves the selection unchanged.
func (r *Router) selectApp(iface iso7816.Interface, st *interfaceState, cmd iso7816.Command) []byte {
	for i, app := range r.apdu {
		if !app.AID().Matches(cmd.Data) {
			continue
		}
		r.setSelected(iface, st, i, "select", true)
		data, err := app.Select(iface, cmd)
		if err != nil {
			// The application refused; nothing is selected.
			r.setSelected(iface, st, -1, "select refused", false)
		}
		return r.respond(iface, st, data, err)
	}

	r.debugLog("no application for AID", "interface", iface.String(), "aid", iso7816.AID(cmd.Data).String())
	return iso7816.StatusOnly(iso7816.StatusNotFound)
}

// respond encodes an application result, splitting long responses for
// GET RESPONSE.
func (r *Router) respond(iface iso7816.Interface, st *interfaceState, data []byte, err error) []byte {
	if err != nil {
		var sw iso7816.Status
		if !errors.As(err, &sw) || sw.IsSuccess() {
			r.debugLog("application error", "interface", iface.String(), "error", err)
			r.logError(interfaceTransport(iface), err, "apdu call")
			sw = iso7816.StatusUnspecifiedCheckingError
		}
		return iso7816.StatusOnly(sw)
	}

	if len(data) <= iso7816.MaxShortResponse {
		return encodeResponse(data, iso7816.StatusSuccess)
	}
	st.pending = append([]byte(nil), data[iso7816.MaxShortResponse:]...)
	return encodeResponse(data[:iso7816.MaxShortResponse], iso7816.BytesRemaining(len(st.pending)))
}

// nextResponse returns the next slice of a chained response.
func (r *Router) nextResponse(st *interfaceState) []byte {
	n := min(len(st.pending), iso7816.MaxShortResponse)
	chunk := st.pending[:n]
	st.pending = st.pending[n:]
	if len(st.pending) == 0 {
		st.pending = nil
		return encodeResponse(chunk, iso7816.StatusSuccess)
	}
	return encodeResponse(chunk, iso7816.BytesRemaining(len(st.pending)))
}

func encodeResponse(data []byte, sw iso7816.Status) []byte {
	b, err := iso7816.Response{Data: data, Status: sw}.Bytes()
	if err != nil {
		return iso7816.StatusOnly(iso7816.StatusUnspecifiedCheckingError)
	}
	return b
}
