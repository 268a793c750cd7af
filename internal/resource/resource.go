// Package resource defines identities of measured entities.
package resource

import (
	"strconv"
)

// Kind is a resource kind.
type Kind uint8

const (
	// KindInvalid is a zero value of Kind.
	KindInvalid Kind = iota
	KindLocalMachine
	KindCPUPackage
	KindCPUCore
	KindDram
	KindGPU
	KindProcess

	kindMax
)

var kindNames = [...]string{
	KindInvalid:      "invalid",
	KindLocalMachine: "local_machine",
	KindCPUPackage:   "cpu_package",
	KindCPUCore:      "cpu_core",
	KindDram:         "dram",
	KindGPU:          "gpu",
	KindProcess:      "process",
}

// String returns name of the kind.
func (k Kind) String() string {
	if k >= kindMax {
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// hasIndex whether the kind carries an index payload.
func (k Kind) hasIndex() bool {
	switch k {
	case KindCPUPackage, KindCPUCore, KindDram, KindGPU, KindProcess:
		return true
	default:
		return false
	}
}

// Resource identifies what was measured.
//
// Resource is comparable and can be used as a map key.
type Resource struct {
	kind  Kind
	index uint64
}

// LocalMachine returns the whole local machine.
func LocalMachine() Resource {
	return Resource{kind: KindLocalMachine}
}

// CPUPackage returns CPU package (socket) with given index.
func CPUPackage(id uint32) Resource {
	return Resource{kind: KindCPUPackage, index: uint64(id)}
}

// CPUCore returns CPU core with given index.
func CPUCore(id uint32) Resource {
	return Resource{kind: KindCPUCore, index: uint64(id)}
}

// Dram returns DRAM domain of given CPU package.
func Dram(pkg uint32) Resource {
	return Resource{kind: KindDram, index: uint64(pkg)}
}

// GPU returns GPU with given index.
func GPU(id uint32) Resource {
	return Resource{kind: KindGPU, index: uint64(id)}
}

// Process returns process with given PID.
func Process(pid uint32) Resource {
	return Resource{kind: KindProcess, index: uint64(pid)}
}

// IsZero whether r is zero value.
func (r Resource) IsZero() bool {
	return r == Resource{}
}

// Kind returns resource kind.
func (r Resource) Kind() Kind {
	return r.kind
}

// Index returns kind-specific index.
func (r Resource) Index() (uint64, bool) {
	return r.index, r.kind.hasIndex()
}

// ID returns kind-specific id as a display string.
//
// ID is empty for kinds without payload.
func (r Resource) ID() string {
	if !r.kind.hasIndex() {
		return ""
	}
	return strconv.FormatUint(r.index, 10)
}

// String returns display representation of resource.
func (r Resource) String() string {
	id := r.ID()
	if id == "" {
		return r.kind.String()
	}
	return r.kind.String() + "-" + id
}
