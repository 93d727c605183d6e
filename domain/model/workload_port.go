package model

import "context"

// WorkloadFile is one configuration artifact to place into the workload.
type WorkloadFile struct {
	Path    string
	Content []byte
	// Secret marks material that must not land in plain-text storage.
	Secret bool
}

// WorkloadPort is the interface (domain port) to the managed workload
// processes. Implementations must be idempotent: writing unchanged content
// reports changed=false and performs no side effect.
type WorkloadPort interface {
	// WriteFile places a file, creating parents as needed. Returns
	// whether the stored content actually changed.
	WriteFile(ctx context.Context, file WorkloadFile) (changed bool, err error)

	// RemoveFile deletes a file if present.
	RemoveFile(ctx context.Context, path string) error

	// ListFiles returns the paths currently stored under dir.
	ListFiles(ctx context.Context, dir string) ([]string, error)

	// SetEnvironment replaces the named service's process environment.
	// Returns whether it differed from what was already configured.
	SetEnvironment(ctx context.Context, service string, env map[string]string) (changed bool, err error)

	// SetResources applies CPU/memory ceilings to the named service. An
	// empty limit clears the corresponding ceiling.
	SetResources(ctx context.Context, service, cpuLimit, memoryLimit string) (changed bool, err error)

	// Restart stops and starts the named service. The workload does not
	// reload provisioning on signal, so a full restart is required.
	Restart(ctx context.Context, service string) error
}

// RelationPublisher pushes derived facts (metrics endpoint descriptor,
// service identity metadata) to downstream relations.
type RelationPublisher interface {
	Publish(ctx context.Context, kind RelationKind, fields map[string]string) error
}
