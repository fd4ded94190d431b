package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/crypto/curve25519"

	logview "github.com/attn-provisioner/provisioner-go/cmd/provlog/commands"
	"github.com/attn-provisioner/provisioner-go/pkg/discovery"
	"github.com/attn-provisioner/provisioner-go/pkg/key"
	"github.com/attn-provisioner/provisioner-go/pkg/provisioner"
)

func commands() []command {
	return []command{
		{name: "uuid", summary: "Print the device UUID", run: runUUID},
		{name: "info", summary: "Print the token description", run: runInfo},
		{
			name:    "generate",
			args:    "<p256|ed25519|x25519>",
			summary: "Generate an attestation key and print its public key",
			flags: func(fs *pflag.FlagSet) {
				fs.StringP("output", "o", "", "also write the raw public key to this file")
			},
			run: runGenerate,
		},
		{
			name:    "store-cert",
			args:    "<p256|ed25519|x25519> <cert.der|cert.pem>",
			summary: "Store an attestation certificate",
			run:     runStoreCert,
		},
		{
			name:    "store-t1",
			args:    "<t1.pub|hex>",
			summary: "Store the T1 intermediate public key (64 bytes x||y)",
			run:     runStoreT1,
		},
		{
			name:    "write-file",
			args:    "<token-path> <local-file>",
			summary: "Write a file to the token filesystem",
			run:     runWriteFile,
		},
		{
			name:    "reformat",
			summary: "Wipe the token filesystem",
			flags:   confirmFlag,
			run:     runReformat,
		},
		{
			name:    "bootrom",
			summary: "Reboot the token into its bootloader",
			flags:   confirmFlag,
			run:     runBootrom,
		},
		{
			name:    "selftest",
			args:    "<mode>",
			summary: "Run an attestation self-test (token built with selftest)",
			flags: func(fs *pflag.FlagSet) {
				fs.String("public-key", "", "hex public key of the attestation key, to verify the answer")
			},
			run: runSelfTest,
		},
		{
			name:    "discover",
			summary: "List tokens advertised on the network",
			flags: func(fs *pflag.FlagSet) {
				fs.Duration("wait", discovery.BrowseTimeout, "how long to browse")
			},
			offline: true,
			run:     runDiscover,
		},
		{name: "shell", summary: "Interactive provisioning console", run: runShell},
		{
			name:    "log",
			args:    "<file.plog>",
			summary: "View a protocol log file",
			flags: func(fs *pflag.FlagSet) {
				fs.String("category", "", "category: frame, command, state, error")
				fs.String("transport", "", "transport: contact, contactless, ctaphid")
			},
			offline: true,
			run:     runLog,
		},
	}
}

func confirmFlag(fs *pflag.FlagSet) {
	fs.Bool("yes", false, "do not ask for confirmation")
}

// requireArgs checks the positional argument count.
func requireArgs(fs *pflag.FlagSet, n int) error {
	if fs.NArg() != n {
		return fmt.Errorf("%s: expected %d argument(s), got %d", fs.Name(), n, fs.NArg())
	}
	return nil
}

func runUUID(ctx context.Context, s *session, fs *pflag.FlagSet) error {
	if err := requireArgs(fs, 0); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	selected, err := s.token.selectApp(ctx)
	if err != nil {
		return err
	}
	id, err := s.token.UUID(ctx)
	if err != nil {
		return err
	}
	if id != selected {
		s.logger.Warn("uuid mismatch", "select", selected.String(), "get_uuid", id.String())
	}
	s.printf("%s\n", id)
	return nil
}

func runInfo(ctx context.Context, s *session, fs *pflag.FlagSet) error {
	if err := requireArgs(fs, 0); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	info, err := s.link.Info(ctx)
	if err != nil {
		return err
	}
	s.printf("UUID:        %s\n", hex.EncodeToString(info.UUID))
	s.printf("Version:     %s\n", info.Version)
	s.printf("NFC powered: %t\n", info.NFCPowered)
	s.printf("APDU apps:   %s\n", strings.Join(info.APDUApps, ", "))
	hid := make([]string, len(info.HIDCommands))
	for i, c := range info.HIDCommands {
		hid[i] = fmt.Sprintf("0x%02X", c)
	}
	s.printf("HID cmds:    %s\n", strings.Join(hid, ", "))
	return nil
}

func runGenerate(ctx context.Context, s *session, fs *pflag.FlagSet) error {
	if err := requireArgs(fs, 1); err != nil {
		return err
	}
	kind, err := lookupKind(fs.Arg(0))
	if err != nil {
		return err
	}
	ctx, cancel, tok, err := s.selected(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	public, err := tok.Generate(ctx, kind)
	if err != nil {
		return err
	}
	if out, _ := fs.GetString("output"); out != "" {
		if err := os.WriteFile(out, public, 0o644); err != nil {
			return err
		}
	}
	s.printf("%s\n", hex.EncodeToString(public))
	return nil
}

func runStoreCert(ctx context.Context, s *session, fs *pflag.FlagSet) error {
	if err := requireArgs(fs, 2); err != nil {
		return err
	}
	kind, err := lookupKind(fs.Arg(0))
	if err != nil {
		return err
	}
	der, err := readCertificate(fs.Arg(1))
	if err != nil {
		return err
	}
	ctx, cancel, tok, err := s.selected(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := tok.StoreCertificate(ctx, kind, der); err != nil {
		return err
	}
	s.printf("stored %s certificate (%d bytes)\n", kind.name, len(der))
	return nil
}

// readCertificate reads a DER certificate, unwrapping a PEM file.
func readCertificate(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != "CERTIFICATE" {
			return nil, fmt.Errorf("%s: PEM block is %q, want CERTIFICATE", path, block.Type)
		}
		return block.Bytes, nil
	}
	return data, nil
}

func runStoreT1(ctx context.Context, s *session, fs *pflag.FlagSet) error {
	if err := requireArgs(fs, 1); err != nil {
		return err
	}
	public, err := readKeyArg(fs.Arg(0))
	if err != nil {
		return err
	}
	if len(public) != provisioner.T1PublicKeySize {
		return fmt.Errorf("T1 public key must be %d bytes, got %d", provisioner.T1PublicKeySize, len(public))
	}
	ctx, cancel, tok, err := s.selected(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := tok.StoreT1(ctx, public); err != nil {
		return err
	}
	s.printf("stored T1 intermediate public key\n")
	return nil
}

// readKeyArg accepts a hex string or the path of a raw key file.
func readKeyArg(arg string) ([]byte, error) {
	if b, err := hex.DecodeString(arg); err == nil {
		return b, nil
	}
	return os.ReadFile(arg)
}

func runWriteFile(ctx context.Context, s *session, fs *pflag.FlagSet) error {
	if err := requireArgs(fs, 2); err != nil {
		return err
	}
	path := fs.Arg(0)
	if len(path) > provisioner.PathBufferSize {
		return fmt.Errorf("token path longer than %d bytes", provisioner.PathBufferSize)
	}
	content, err := os.ReadFile(fs.Arg(1))
	if err != nil {
		return err
	}
	if len(content) > provisioner.ContentBufferSize {
		return fmt.Errorf("file larger than %d bytes", provisioner.ContentBufferSize)
	}
	ctx, cancel, tok, err := s.selected(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := tok.WriteFile(ctx, path, content); err != nil {
		return err
	}
	s.printf("wrote %s (%d bytes)\n", path, len(content))
	return nil
}

func confirmed(fs *pflag.FlagSet, action string) error {
	if yes, _ := fs.GetBool("yes"); !yes {
		return fmt.Errorf("%s is destructive; pass --yes to proceed", action)
	}
	return nil
}

func runReformat(ctx context.Context, s *session, fs *pflag.FlagSet) error {
	if err := confirmed(fs, "reformat"); err != nil {
		return err
	}
	ctx, cancel, tok, err := s.selected(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := tok.Reformat(ctx); err != nil {
		return err
	}
	s.printf("filesystem reformatted\n")
	return nil
}

func runBootrom(ctx context.Context, s *session, fs *pflag.FlagSet) error {
	if err := confirmed(fs, "bootrom"); err != nil {
		return err
	}
	ctx, cancel, tok, err := s.selected(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	// The token reboots instead of answering.
	err = tok.BootToBootrom(ctx)
	if err == nil {
		return errors.New("token answered BootToBootrom without rebooting")
	}
	s.logger.Debug("bootrom", "result", err)
	s.printf("token rebooted to bootrom\n")
	return nil
}

// selfTestModes maps command line names to TestAttestation modes.
var selfTestModes = map[string]provisioner.TestAttestationMode{
	"p256-sign":  provisioner.ModeP256Sign,
	"p256-cert":  provisioner.ModeP256Cert,
	"ed255-sign": provisioner.ModeEd255Sign,
	"ed255-cert": provisioner.ModeEd255Cert,
	"x255-agree": provisioner.ModeX255Agree,
	"x255-cert":  provisioner.ModeX255Cert,
	"t1-key":     provisioner.ModeT1Key,
}

func selfTestModeNames() string {
	names := make([]string, 0, len(selfTestModes))
	for n := range selfTestModes {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func runSelfTest(ctx context.Context, s *session, fs *pflag.FlagSet) error {
	if err := requireArgs(fs, 1); err != nil {
		return err
	}
	mode, ok := selfTestModes[fs.Arg(0)]
	if !ok {
		return fmt.Errorf("unknown mode %q (want one of %s)", fs.Arg(0), selfTestModeNames())
	}
	var public []byte
	if h, _ := fs.GetString("public-key"); h != "" {
		var err error
		if public, err = hex.DecodeString(h); err != nil {
			return fmt.Errorf("public key: %w", err)
		}
	}

	ctx, cancel, tok, err := s.selected(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	result, err := selfTest(ctx, tok, mode, public)
	if err != nil {
		return err
	}
	s.printf("%s: %s\n", mode, result)
	return nil
}

// selfTest runs mode and verifies the answer when public is given.
func selfTest(ctx context.Context, tok *token, mode provisioner.TestAttestationMode, public []byte) (string, error) {
	var ephemeral []byte
	var data []byte
	if mode == provisioner.ModeX255Agree {
		ephemeral = make([]byte, curve25519.ScalarSize)
		if _, err := rand.Read(ephemeral); err != nil {
			return "", err
		}
		pub, err := curve25519.X25519(ephemeral, curve25519.Basepoint)
		if err != nil {
			return "", err
		}
		data = pub
	}

	resp, err := tok.SelfTest(ctx, mode, data)
	if err != nil {
		return "", err
	}

	switch mode {
	case provisioner.ModeP256Sign, provisioner.ModeEd255Sign, provisioner.ModeX255Agree:
		if len(resp) < provisioner.ChallengeSize {
			return "", fmt.Errorf("answer of %d bytes is shorter than the challenge", len(resp))
		}
		challenge, proof := resp[:provisioner.ChallengeSize], resp[provisioner.ChallengeSize:]
		if public == nil {
			return fmt.Sprintf("challenge %x proof %x (unverified)", challenge, proof), nil
		}
		switch mode {
		case provisioner.ModeP256Sign:
			err = key.Verify(key.KindP256, public, challenge, proof)
		case provisioner.ModeEd255Sign:
			err = key.Verify(key.KindEd255, public, challenge, proof)
		default:
			err = key.VerifyAgreement(ephemeral, public, challenge, proof)
		}
		if err != nil {
			return "", err
		}
		return "verified", nil
	default:
		return hex.EncodeToString(resp), nil
	}
}

func runDiscover(ctx context.Context, s *session, fs *pflag.FlagSet) error {
	wait, _ := fs.GetDuration("wait")
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	found, err := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig()).Browse(ctx)
	if err != nil {
		return err
	}
	n := 0
	for svc := range found {
		n++
		nfc := ""
		if svc.NFCPowered {
			nfc = " nfc"
		}
		s.printf("%-14s %s  v%s  %s [%s]%s\n", svc.InstanceName, svc.UUID, svc.Version,
			svc.Address(), strings.Join(svc.Transports, ","), nfc)
	}
	if n == 0 {
		s.printf("no tokens found within %s\n", wait.Round(time.Millisecond))
	}
	return nil
}

func runLog(_ context.Context, s *session, fs *pflag.FlagSet) error {
	if err := requireArgs(fs, 1); err != nil {
		return err
	}
	category, _ := fs.GetString("category")
	transport, _ := fs.GetString("transport")
	return logview.RunView(fs.Arg(0), logview.Selection{Category: category, Transport: transport}, s.stdout)
}
