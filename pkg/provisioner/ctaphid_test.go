package provisioner

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attn-provisioner/provisioner-go/pkg/ctaphid"
	"github.com/attn-provisioner/provisioner-go/pkg/iso7816"
	"github.com/attn-provisioner/provisioner-go/pkg/store"
)

func TestDecodeHID(t *testing.T) {
	tests := []struct {
		code byte
		want Operation
	}{
		{0x70, OpSelect},
		{0x71, OpWriteBinary},
		{0x72, OpWriteFile},
		{0x73, OpGetUuid},
		{0x74, OpGenerateP256Key},
		{0x75, OpSaveP256AttestationCertificate},
		{0x76, OpSaveT1IntermediatePublicKey},
	}
	for _, tt := range tests {
		got, err := DecodeHID(ctaphid.Vendor(tt.code))
		require.NoError(t, err)
		assert.Equal(t, Cmd(tt.want), got)
	}

	for _, code := range []ctaphid.Command{ctaphid.Vendor(0x40), ctaphid.Vendor(0x77), ctaphid.CmdPing} {
		_, err := DecodeHID(code)
		assert.Equal(t, ctaphid.ErrInvalidCommand, err, code.String())
	}
}

func TestHIDAppCommands(t *testing.T) {
	app := newFixture(t, 1).p.HID()
	cmds := app.Commands()
	require.Len(t, cmds, 7)
	for _, c := range cmds {
		assert.True(t, c.IsVendor())
	}

	cmds[0] = ctaphid.CmdPing
	assert.Equal(t, HIDSelect, app.Commands()[0], "Commands returns a copy")
}

func TestHIDAppErrors(t *testing.T) {
	f := newFixture(t, 1)
	app := f.p.HID()

	_, err := app.Call(HIDSaveT1IntermediatePublicKey, make([]byte, 10))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ctaphid.ErrInvalidLength))
	st, ok := AsStatus(err)
	require.True(t, ok)
	assert.Equal(t, IncorrectDataParameter, st)

	_, err = app.Call(HIDSelect, []byte{0xE1, 0x09})
	assert.ErrorIs(t, err, ctaphid.ErrInvalidLength)
	st, _ = AsStatus(err)
	assert.Equal(t, NotFound, st)

	_, err = app.Call(ctaphid.Vendor(0x7F), nil)
	assert.Equal(t, ctaphid.ErrInvalidCommand, err)
}

func TestHIDAppWriteFileFlow(t *testing.T) {
	f := newFixture(t, 1)
	app := f.p.HID()

	steps := []struct {
		cmd  ctaphid.Command
		data []byte
	}{
		{HIDSelect, TagFilename()},
		{HIDWriteBinary, []byte("/fido/sec/00")},
		{HIDSelect, TagFile()},
		{HIDWriteBinary, []byte("secret")},
		{HIDWriteFile, nil},
	}
	for _, s := range steps {
		_, err := app.Call(s.cmd, s.data)
		require.NoError(t, err, s.cmd.String())
	}

	got, err := f.store.Read(store.Internal, "/fido/sec/00")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), got)
}

// Equivalent commands over both transports produce the same result and the
// same stored state.
func TestTransportEquivalence(t *testing.T) {
	pairs := []struct {
		ins  iso7816.Instruction
		hid  ctaphid.Command
		data []byte
	}{
		{InsGetUuid, HIDGetUuid, nil},
		{InsGenerateP256Key, HIDGenerateP256Key, nil},
		{InsSaveP256AttestationCertificate, HIDSaveP256AttestationCertificate, bytes.Repeat([]byte{0x30}, 120)},
		{InsSaveT1IntermediatePublicKey, HIDSaveT1IntermediatePublicKey, bytes.Repeat([]byte{0x04}, T1PublicKeySize)},
		{InsSaveT1IntermediatePublicKey, HIDSaveT1IntermediatePublicKey, []byte{1}},
		{iso7816.InsSelect, HIDSelect, TagFile()},
		{iso7816.InsWriteBinary, HIDWriteBinary, []byte("abc")},
		{InsWriteFile, HIDWriteFile, nil},
	}

	viaAPDU := newFixture(t, 0x33)
	viaHID := newFixture(t, 0x33)

	for _, pair := range pairs {
		a, err := DecodeAPDU(iso7816.NewCommand(pair.ins, 0, 0, pair.data))
		require.NoError(t, err)
		h, err := DecodeHID(pair.hid)
		require.NoError(t, err)
		require.Equal(t, a, h)

		respA, errA := viaAPDU.p.APDU().Call(iso7816.Contact, iso7816.NewCommand(pair.ins, 0, 0, pair.data))
		respH, errH := viaHID.p.HID().Call(pair.hid, pair.data)

		assert.Equal(t, respA, respH, a.String())
		assert.Equal(t, errA == nil, errH == nil, a.String())
		if errA != nil {
			st, _ := AsStatus(errH)
			assert.Equal(t, errA, StatusWord(st), a.String())
		}
	}

	for _, path := range []string{PathP256Secret, PathP256Certificate, PathT1PublicKey} {
		a, errA := viaAPDU.store.Read(store.Internal, path)
		h, errH := viaHID.store.Read(store.Internal, path)
		require.NoError(t, errA)
		require.NoError(t, errH)
		assert.Equal(t, a, h, path)
	}
}
