package dispatch_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attn-provisioner/provisioner-go/pkg/dispatch"
	"github.com/attn-provisioner/provisioner-go/pkg/engine"
	"github.com/attn-provisioner/provisioner-go/pkg/iso7816"
	"github.com/attn-provisioner/provisioner-go/pkg/provisioner"
	"github.com/attn-provisioner/provisioner-go/pkg/store"
)

type platform struct{}

func (platform) UUID() [provisioner.UUIDSize]byte {
	return [provisioner.UUIDSize]byte{0xAA, 0xBB, 15: 0xFF}
}
func (platform) ErasePage(int) error { return nil }
func (platform) Reboot()             {}

func newProvisionerRouter(t *testing.T) (*dispatch.Router, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore(0)
	p, err := provisioner.New(provisioner.Config{
		Engine:     engine.NewSoftware(st, engine.WithRand(rand.Reader)),
		Store:      st,
		Filesystem: st,
		Platform:   platform{},
	})
	require.NoError(t, err)

	r, err := dispatch.NewRouter(
		[]dispatch.APDUApp{p.APDU()},
		[]dispatch.HIDApp{p.HID()},
		dispatch.Config{},
	)
	require.NoError(t, err)
	return r, st
}

func apdu(t *testing.T, r *dispatch.Router, cmd iso7816.Command) iso7816.Response {
	t.Helper()
	var last []byte
	for _, part := range cmd.Chain() {
		frame, err := part.Bytes()
		require.NoError(t, err)
		last = r.RouteAPDU(iso7816.Contact, frame)
	}
	resp, err := iso7816.ParseResponse(last)
	require.NoError(t, err)
	return resp
}

func TestProvisionerOverAPDU(t *testing.T) {
	r, st := newProvisionerRouter(t)
	uuid := platform{}.UUID()

	resp := apdu(t, r, iso7816.NewCommand(iso7816.InsSelect, iso7816.SelectByName, 0, provisioner.AID))
	require.Equal(t, iso7816.StatusSuccess, resp.Status)
	assert.Equal(t, uuid[:], resp.Data)

	content := bytes.Repeat([]byte{0x30}, 1000)
	steps := []iso7816.Command{
		iso7816.NewCommand(iso7816.InsSelect, 0, 0, provisioner.TagFilename()),
		iso7816.NewCommand(iso7816.InsWriteBinary, 0, 0, []byte("/fido/x5c/00")),
		iso7816.NewCommand(iso7816.InsSelect, 0, 0, provisioner.TagFile()),
		iso7816.NewCommand(iso7816.InsWriteBinary, 0, 0, content),
		iso7816.NewCommand(provisioner.InsWriteFile, 0, 0, nil),
	}
	for _, cmd := range steps {
		resp := apdu(t, r, cmd)
		require.Equal(t, iso7816.StatusSuccess, resp.Status, cmd.String())
	}

	got, err := st.Read(store.Internal, "/fido/x5c/00")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	resp = apdu(t, r, iso7816.NewCommand(provisioner.InsGenerateP256Key, 0, 0, nil))
	require.Equal(t, iso7816.StatusSuccess, resp.Status)
	assert.Len(t, resp.Data, 64)

	resp = apdu(t, r, iso7816.NewCommand(provisioner.InsSaveP256AttestationCertificate, 0, 0, []byte{1, 2, 3}))
	assert.Equal(t, iso7816.StatusIncorrectDataParameter, resp.Status)

	resp = apdu(t, r, iso7816.NewCommand(0xCA, 0, 0, nil))
	assert.Equal(t, iso7816.StatusFunctionNotSupported, resp.Status)
}

func TestProvisionerOverCTAPHID(t *testing.T) {
	r, _ := newProvisionerRouter(t)
	uuid := platform{}.UUID()

	got, err := r.RouteHID(provisioner.HIDGetUuid, nil)
	require.NoError(t, err)
	assert.Equal(t, uuid[:], got)

	pub, err := r.RouteHID(provisioner.HIDGenerateP256Key, nil)
	require.NoError(t, err)
	assert.Len(t, pub, 64)
}
