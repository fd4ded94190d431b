package dispatch

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/attn-provisioner/provisioner-go/pkg/ctaphid"
	"github.com/attn-provisioner/provisioner-go/pkg/iso7816"
)

type mockAPDUApp struct {
	mock.Mock
	name string
	aid  iso7816.AID
}

func newMockAPDUApp(t *testing.T, name string, aid iso7816.AID) *mockAPDUApp {
	m := &mockAPDUApp{name: name, aid: aid}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockAPDUApp) Name() string     { return m.name }
func (m *mockAPDUApp) AID() iso7816.AID { return m.aid }

func (m *mockAPDUApp) Select(iface iso7816.Interface, cmd iso7816.Command) ([]byte, error) {
	args := m.Called(iface, cmd)
	return bytesArg(args, 0), args.Error(1)
}

func (m *mockAPDUApp) Deselect() {
	m.Called()
}

func (m *mockAPDUApp) Call(iface iso7816.Interface, cmd iso7816.Command) ([]byte, error) {
	args := m.Called(iface, cmd)
	return bytesArg(args, 0), args.Error(1)
}

type mockHIDApp struct {
	mock.Mock
	commands []ctaphid.Command
}

func newMockHIDApp(t *testing.T, commands ...ctaphid.Command) *mockHIDApp {
	m := &mockHIDApp{commands: commands}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockHIDApp) Commands() []ctaphid.Command { return m.commands }

func (m *mockHIDApp) Call(cmd ctaphid.Command, data []byte) ([]byte, error) {
	args := m.Called(cmd, data)
	return bytesArg(args, 0), args.Error(1)
}

func bytesArg(args mock.Arguments, i int) []byte {
	b, _ := args.Get(i).([]byte)
	return b
}

// encode builds the frame for cmd.
func encode(t *testing.T, cmd iso7816.Command) []byte {
	t.Helper()
	b, err := cmd.Bytes()
	require.NoError(t, err)
	return b
}

func selectFrame(t *testing.T, aid []byte) []byte {
	return encode(t, iso7816.NewCommand(iso7816.InsSelect, iso7816.SelectByName, 0x00, aid))
}

// split separates a response APDU into data and status word.
func split(t *testing.T, resp []byte) ([]byte, iso7816.Status) {
	t.Helper()
	r, err := iso7816.ParseResponse(resp)
	require.NoError(t, err)
	return r.Data, r.Status
}

func withData(data []byte) any {
	return mock.MatchedBy(func(c iso7816.Command) bool {
		return string(c.Data) == string(data)
	})
}
