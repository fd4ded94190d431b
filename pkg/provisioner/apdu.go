package provisioner

import (
	"github.com/attn-provisioner/provisioner-go/pkg/iso7816"
	"github.com/attn-provisioner/provisioner-go/pkg/log"
)

// AID is the provisioner's application identifier.
var AID = iso7816.MustAID(0xA0, 0x00, 0x00, 0x08, 0x47, 0x01, 0x00, 0x00, 0x01)

// Proprietary instruction codes.
const (
	InsWriteFile                       iso7816.Instruction = 0xBF
	InsBootToBootrom                   iso7816.Instruction = 0x51
	InsReformatFilesystem              iso7816.Instruction = 0xBD
	InsGetUuid                         iso7816.Instruction = 0x62
	InsGenerateP256Key                 iso7816.Instruction = 0xBC
	InsGenerateEd255Key                iso7816.Instruction = 0xBB
	InsGenerateX255Key                 iso7816.Instruction = 0xB7
	InsSaveP256AttestationCertificate  iso7816.Instruction = 0xBA
	InsSaveEd255AttestationCertificate iso7816.Instruction = 0xB9
	InsSaveX255AttestationCertificate  iso7816.Instruction = 0xB6
	InsSaveT1IntermediatePublicKey     iso7816.Instruction = 0xB5
	InsTestAttestation                 iso7816.Instruction = 0xB8
)

var apduInstructions = map[iso7816.Instruction]Operation{
	iso7816.InsSelect:                  OpSelect,
	iso7816.InsWriteBinary:             OpWriteBinary,
	InsWriteFile:                       OpWriteFile,
	InsBootToBootrom:                   OpBootToBootrom,
	InsReformatFilesystem:              OpReformatFilesystem,
	InsGetUuid:                         OpGetUuid,
	InsGenerateP256Key:                 OpGenerateP256Key,
	InsGenerateEd255Key:                OpGenerateEd255Key,
	InsGenerateX255Key:                 OpGenerateX255Key,
	InsSaveP256AttestationCertificate:  OpSaveP256AttestationCertificate,
	InsSaveEd255AttestationCertificate: OpSaveEd255AttestationCertificate,
	InsSaveX255AttestationCertificate:  OpSaveX255AttestationCertificate,
	InsSaveT1IntermediatePublicKey:     OpSaveT1IntermediatePublicKey,
}

// DecodeAPDU maps a command APDU to a provisioner command. Unknown
// instructions, and TestAttestation when self-test is not built in, yield
// iso7816.StatusFunctionNotSupported.
func DecodeAPDU(cmd iso7816.Command) (Command, error) {
	if cmd.Instruction == InsTestAttestation && SelfTestEnabled {
		mode := TestAttestationMode(cmd.P1)
		if !mode.Valid() {
			return Command{}, iso7816.StatusFunctionNotSupported
		}
		return TestAttestation(mode), nil
	}
	op, ok := apduInstructions[cmd.Instruction]
	if !ok {
		return Command{}, iso7816.StatusFunctionNotSupported
	}
	return Cmd(op), nil
}

// StatusWord maps an interpreter failure to an ISO 7816 status word.
func StatusWord(err error) iso7816.Status {
	st, ok := AsStatus(err)
	if !ok {
		return iso7816.StatusFunctionNotSupported
	}
	switch st {
	case NotFound:
		return iso7816.StatusNotFound
	case WrongLength:
		return iso7816.StatusWrongLength
	case NotEnoughMemory:
		return iso7816.StatusNotEnoughMemory
	case IncorrectDataParameter:
		return iso7816.StatusIncorrectDataParameter
	default:
		return iso7816.StatusUnspecifiedCheckingError
	}
}

// APDUApp exposes a Provisioner as an ISO 7816 application.
type APDUApp struct {
	p *Provisioner
}

// APDU returns the ISO 7816 adapter for p.
func (p *Provisioner) APDU() *APDUApp {
	return &APDUApp{p: p}
}

// Name returns the application name.
func (a *APDUApp) Name() string {
	return AppName
}

// AID returns the provisioner AID.
func (a *APDUApp) AID() iso7816.AID {
	return AID
}

// Select clears the scratch buffers and answers with the device UUID, so a
// probing tool learns the identity without a second command.
func (a *APDUApp) Select(_ iso7816.Interface, _ iso7816.Command) ([]byte, error) {
	return a.p.Select(), nil
}

// Deselect is a no-op; scratch state is reset on the next selection.
func (a *APDUApp) Deselect() {}

// Call decodes and executes a command APDU. Failures are iso7816.Status values.
func (a *APDUApp) Call(iface iso7816.Interface, cmd iso7816.Command) ([]byte, error) {
	c, err := DecodeAPDU(cmd)
	if err != nil {
		return nil, err
	}
	resp, err := a.p.handle(interfaceTransport(iface), c, cmd.Data)
	if err != nil {
		return nil, StatusWord(err)
	}
	return resp, nil
}

func interfaceTransport(iface iso7816.Interface) log.Transport {
	if iface == iso7816.Contactless {
		return log.TransportContactless
	}
	return log.TransportContact
}
