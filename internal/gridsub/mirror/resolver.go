// Package mirror resolves user-supplied file references into the three
// locations a job sees them at: the original path, a staged copy in the
// distributed store, and the working copy inside the job sandbox.
package mirror

import (
	"path"
	"path/filepath"
	"strings"
)

// Class classifies a file reference by where it currently lives.
type Class int

const (
	// ClassUnknown means the reference has not been classified yet
	ClassUnknown Class = iota
	// ClassLocal means the path is outside the distributed store
	ClassLocal
	// ClassStaged means the path already lives inside the distributed store
	ClassStaged
)

func (c Class) String() string {
	switch c {
	case ClassLocal:
		return "local"
	case ClassStaged:
		return "staged"
	default:
		return "unknown"
	}
}

// Reference is a file path plus its classification.
type Reference struct {
	Path  string
	Class Class
}

// Mirror records the three locations of one file reference. Values are
// computed once and never mutated afterwards.
type Mirror struct {
	// Original is the path exactly as the user gave it
	Original string
	// Staged is the path inside the distributed store; equals Original
	// when the file already lives there
	Staged string
	// Working is the path inside the per-job sandbox on the worker node
	Working string
}

// NeedsStaging reports whether a physical copy into the store is required.
func (m Mirror) NeedsStaging() bool {
	return m.Original != m.Staged
}

// Resolver computes mirrors relative to a distributed-store mount prefix.
// Resolution is pure: no filesystem access, no copies. The caller decides
// whether and when to copy.
type Resolver struct {
	storePrefix string
}

// NewResolver returns a resolver for the given store mount point,
// e.g. "/hdfs".
func NewResolver(storePrefix string) *Resolver {
	return &Resolver{storePrefix: filepath.Clean(storePrefix)}
}

// StorePrefix returns the configured store mount point.
func (r *Resolver) StorePrefix() string {
	return r.storePrefix
}

// InStore reports whether p lives under the distributed store.
func (r *Resolver) InStore(p string) bool {
	cleaned := filepath.Clean(p)
	if cleaned == r.storePrefix {
		return true
	}
	return strings.HasPrefix(cleaned, r.storePrefix+string(filepath.Separator))
}

// Classify returns the reference for a path.
func (r *Resolver) Classify(p string) Reference {
	if r.InStore(p) {
		return Reference{Path: p, Class: ClassStaged}
	}
	return Reference{Path: p, Class: ClassLocal}
}

// ResolveInput computes the mirror for an input reference. A store-resident
// input keeps its original path as the staged copy; anything else stages
// under stagingDir. The working copy is always the basename, dropped into
// the sandbox before the job runs.
func (r *Resolver) ResolveInput(p, stagingDir string) Mirror {
	base := path.Base(p)
	staged := p
	if !r.InStore(p) {
		staged = path.Join(stagingDir, base)
	}
	return Mirror{Original: p, Staged: staged, Working: base}
}

// ResolveOutput computes the mirror for an output reference. A store-resident
// output is used verbatim as the destination. Otherwise the job writes the
// file at its given path inside the sandbox, since an output cannot be
// streamed the way an input can, and it is published to stagingDir afterwards.
func (r *Resolver) ResolveOutput(p, stagingDir string) Mirror {
	base := path.Base(p)
	if r.InStore(p) {
		return Mirror{Original: p, Staged: p, Working: base}
	}
	return Mirror{
		Original: p,
		Staged:   path.Join(stagingDir, base),
		Working:  p,
	}
}
