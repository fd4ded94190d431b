package provisioner

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attn-provisioner/provisioner-go/pkg/engine"
	"github.com/attn-provisioner/provisioner-go/pkg/log"
	"github.com/attn-provisioner/provisioner-go/pkg/store"
)

var testUUID = [UUIDSize]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10}

// rebootSignal is the panic value fakePlatform uses to leave Reboot.
type rebootSignal struct{}

type fakePlatform struct {
	erased   []int
	eraseErr error
	reboots  int
	returns  bool // Reboot returns instead of panicking
}

func (f *fakePlatform) UUID() [UUIDSize]byte { return testUUID }

func (f *fakePlatform) ErasePage(page int) error {
	f.erased = append(f.erased, page)
	return f.eraseErr
}

func (f *fakePlatform) Reboot() {
	f.reboots++
	if !f.returns {
		panic(rebootSignal{})
	}
}

// repeatReader yields an endless stream of one byte.
type repeatReader byte

func (r repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r)
	}
	return len(p), nil
}

// failingStore wraps a MemoryStore and fails every Put.
type failingStore struct {
	*store.MemoryStore
}

func (failingStore) Put(store.Location, string, []byte) error {
	return store.ErrNoSpace
}

type failingFS struct{}

func (failingFS) Format() error { return errors.New("flash error") }

type fixture struct {
	p        *Provisioner
	store    *store.MemoryStore
	engine   *engine.Software
	platform *fakePlatform
	events   *log.Recorder
}

func newFixture(t *testing.T, seed byte) *fixture {
	t.Helper()
	st := store.NewMemoryStore(0)
	return newFixtureWith(t, st, st, seed)
}

func newFixtureWith(t *testing.T, st store.Store, fs store.Filesystem, seed byte) *fixture {
	t.Helper()

	mem, _ := st.(*store.MemoryStore)
	if fst, ok := st.(failingStore); ok {
		mem = fst.MemoryStore
	}
	eng := engine.NewSoftware(st, engine.WithRand(repeatReader(seed)))
	platform := &fakePlatform{}
	events := &log.Recorder{}

	p, err := New(Config{
		Engine:         eng,
		Store:          st,
		Filesystem:     fs,
		Platform:       platform,
		ProtocolLogger: events,
	})
	require.NoError(t, err)

	return &fixture{p: p, store: mem, engine: eng, platform: platform, events: events}
}

// write selects buffer tag and writes data through WriteBinary.
func (f *fixture) write(t *testing.T, tag []byte, data []byte) {
	t.Helper()
	_, err := f.p.Handle(Cmd(OpSelect), tag)
	require.NoError(t, err)
	_, err = f.p.Handle(Cmd(OpWriteBinary), data)
	require.NoError(t, err)
}
