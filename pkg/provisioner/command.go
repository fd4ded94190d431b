package provisioner

import "fmt"

// Operation is a provisioner command without parameters.
type Operation uint8

const (
	OpSelect Operation = iota + 1
	OpWriteBinary
	OpWriteFile
	OpBootToBootrom
	OpReformatFilesystem
	OpGetUuid
	OpGenerateP256Key
	OpGenerateEd255Key
	OpGenerateX255Key
	OpSaveP256AttestationCertificate
	OpSaveEd255AttestationCertificate
	OpSaveX255AttestationCertificate
	OpSaveT1IntermediatePublicKey
	OpTestAttestation
)

var operationNames = map[Operation]string{
	OpSelect:                          "Select",
	OpWriteBinary:                     "WriteBinary",
	OpWriteFile:                       "WriteFile",
	OpBootToBootrom:                   "BootToBootrom",
	OpReformatFilesystem:              "ReformatFilesystem",
	OpGetUuid:                         "GetUuid",
	OpGenerateP256Key:                 "GenerateP256Key",
	OpGenerateEd255Key:                "GenerateEd255Key",
	OpGenerateX255Key:                 "GenerateX255Key",
	OpSaveP256AttestationCertificate:  "SaveP256AttestationCertificate",
	OpSaveEd255AttestationCertificate: "SaveEd255AttestationCertificate",
	OpSaveX255AttestationCertificate:  "SaveX255AttestationCertificate",
	OpSaveT1IntermediatePublicKey:     "SaveT1IntermediatePublicKey",
	OpTestAttestation:                 "TestAttestation",
}

// String returns the operation name.
func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Operation(%d)", uint8(o))
}

// Valid reports whether o is a known operation.
func (o Operation) Valid() bool {
	_, ok := operationNames[o]
	return ok
}

// TestAttestationMode selects what TestAttestation exercises. The values
// are the P1 codes of the APDU encoding.
type TestAttestationMode uint8

const (
	ModeP256Sign  TestAttestationMode = 0
	ModeP256Cert  TestAttestationMode = 1
	ModeEd255Sign TestAttestationMode = 2
	ModeEd255Cert TestAttestationMode = 3
	ModeX255Agree TestAttestationMode = 4
	ModeX255Cert  TestAttestationMode = 5
	ModeT1Key     TestAttestationMode = 6
)

var modeNames = [...]string{
	ModeP256Sign:  "P256Sign",
	ModeP256Cert:  "P256Cert",
	ModeEd255Sign: "Ed255Sign",
	ModeEd255Cert: "Ed255Cert",
	ModeX255Agree: "X255Agree",
	ModeX255Cert:  "X255Cert",
	ModeT1Key:     "T1Key",
}

// String returns the mode name.
func (m TestAttestationMode) String() string {
	if m.Valid() {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Valid reports whether m is a known mode.
func (m TestAttestationMode) Valid() bool {
	return int(m) < len(modeNames)
}

// Command is a decoded provisioner command. Mode is only meaningful for
// OpTestAttestation. Both transport adapters produce identical values for
// equivalent operations, so Command is comparable.
type Command struct {
	Op   Operation
	Mode TestAttestationMode
}

// Cmd returns the command for op.
func Cmd(op Operation) Command {
	return Command{Op: op}
}

// TestAttestation returns a TestAttestation command for mode.
func TestAttestation(mode TestAttestationMode) Command {
	return Command{Op: OpTestAttestation, Mode: mode}
}

// String returns the command name, with the mode for TestAttestation.
func (c Command) String() string {
	if c.Op == OpTestAttestation {
		return c.Op.String() + "(" + c.Mode.String() + ")"
	}
	return c.Op.String()
}
