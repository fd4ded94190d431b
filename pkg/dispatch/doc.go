// Package dispatch routes inbound token frames to applications.
//
// A Router holds two ordered application lists: APDU applications addressed
// by AID and CTAPHID applications addressed by vendor command code. APDU
// selection is tracked per physical interface, so the contact and
// contactless interfaces may have different applications selected at the
// same time. CTAPHID has no selection state.
//
// The router owns ISO 7816 command chaining and response chaining (61xx with
// GET RESPONSE), so applications see whole commands and return whole
// responses.
//
// # Usage
//
//	router, err := dispatch.NewRouter(
//	    []dispatch.APDUApp{prov.APDU()},
//	    []dispatch.HIDApp{prov.HID()},
//	    dispatch.Config{Logger: logger},
//	)
//	resp := router.RouteAPDU(iso7816.Contact, frame)
package dispatch
