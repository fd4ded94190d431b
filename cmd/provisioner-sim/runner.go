package main

import (
	"github.com/google/uuid"

	"github.com/attn-provisioner/provisioner-go/pkg/apps"
	"github.com/attn-provisioner/provisioner-go/pkg/provisioner"
	"github.com/attn-provisioner/provisioner-go/pkg/version"
)

// runner identifies the simulated token.
type runner struct {
	id      uuid.UUID
	version version.Version
}

func (r runner) UUID() [provisioner.UUIDSize]byte {
	return r.id
}

func (r runner) Version() uint32 {
	return r.version.Encode()
}

var _ apps.Runner = runner{}
