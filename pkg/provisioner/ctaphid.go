package provisioner

import (
	"fmt"

	"github.com/attn-provisioner/provisioner-go/pkg/ctaphid"
	"github.com/attn-provisioner/provisioner-go/pkg/log"
)

// Vendor command codes. CTAPHID exposes a subset of the APDU instructions.
var (
	HIDSelect                         = ctaphid.Vendor(0x70)
	HIDWriteBinary                    = ctaphid.Vendor(0x71)
	HIDWriteFile                      = ctaphid.Vendor(0x72)
	HIDGetUuid                        = ctaphid.Vendor(0x73)
	HIDGenerateP256Key                = ctaphid.Vendor(0x74)
	HIDSaveP256AttestationCertificate = ctaphid.Vendor(0x75)
	HIDSaveT1IntermediatePublicKey    = ctaphid.Vendor(0x76)
)

var hidCommands = []ctaphid.Command{
	HIDSelect,
	HIDWriteBinary,
	HIDWriteFile,
	HIDGetUuid,
	HIDGenerateP256Key,
	HIDSaveP256AttestationCertificate,
	HIDSaveT1IntermediatePublicKey,
}

var hidOperations = map[ctaphid.Command]Operation{
	HIDSelect:                         OpSelect,
	HIDWriteBinary:                    OpWriteBinary,
	HIDWriteFile:                      OpWriteFile,
	HIDGetUuid:                        OpGetUuid,
	HIDGenerateP256Key:                OpGenerateP256Key,
	HIDSaveP256AttestationCertificate: OpSaveP256AttestationCertificate,
	HIDSaveT1IntermediatePublicKey:    OpSaveT1IntermediatePublicKey,
}

// DecodeHID maps a CTAPHID command code to a provisioner command.
func DecodeHID(cmd ctaphid.Command) (Command, error) {
	op, ok := hidOperations[cmd]
	if !ok {
		return Command{}, ctaphid.ErrInvalidCommand
	}
	return Cmd(op), nil
}

// HIDApp exposes a Provisioner over CTAPHID vendor commands.
type HIDApp struct {
	p *Provisioner
}

// HID returns the CTAPHID adapter for p.
func (p *Provisioner) HID() *HIDApp {
	return &HIDApp{p: p}
}

// Name returns the application name.
func (h *HIDApp) Name() string {
	return AppName
}

// Commands returns the vendor commands the provisioner answers.
func (h *HIDApp) Commands() []ctaphid.Command {
	return append([]ctaphid.Command(nil), hidCommands...)
}

// Call decodes and executes a vendor command. Every interpreter failure is
// reported as ctaphid.ErrInvalidLength; the Status stays reachable with
// errors.As.
func (h *HIDApp) Call(cmd ctaphid.Command, data []byte) ([]byte, error) {
	c, err := DecodeHID(cmd)
	if err != nil {
		return nil, err
	}
	resp, err := h.p.handle(log.TransportCTAPHID, c, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ctaphid.ErrInvalidLength, err)
	}
	return resp, nil
}
