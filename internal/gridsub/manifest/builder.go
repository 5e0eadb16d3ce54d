package manifest

import (
	"context"
	"fmt"

	"github.com/gridsub/gridsub/internal/gridsub/dag"
	"github.com/gridsub/gridsub/internal/gridsub/mirror"
	"github.com/gridsub/gridsub/internal/gridsub/store"
	"github.com/gridsub/gridsub/internal/gridsub/submit"
	"github.com/gridsub/gridsub/pkg/config"
	"github.com/gridsub/gridsub/pkg/errors"
	"github.com/gridsub/gridsub/pkg/logger"
)

// Plan is a manifest turned into live objects, ready to write or submit.
type Plan struct {
	Groups []*submit.Group
	// Graph is nil when the manifest has no dag section; groups are then
	// submitted independently
	Graph  *dag.Graph
	Copier *store.Copier
}

// Builder turns manifests into plans using process-wide configuration for
// the fields manifests leave unset.
type Builder struct {
	cfg    *config.Config
	runner store.Runner
	log    *logger.Logger
}

func NewBuilder(cfg *config.Config, runner store.Runner, log *logger.Logger) *Builder {
	return &Builder{cfg: cfg, runner: runner, log: log}
}

// Build constructs every group and job the manifest describes, wiring the
// dependency graph when a dag section is present. Dependencies and retries
// are only meaningful inside a workflow, so their use without one fails.
func (b *Builder) Build(ctx context.Context, m *Manifest) (*Plan, error) {
	prefix := m.StorePrefix
	if prefix == "" {
		prefix = b.cfg.StorePrefix
	}
	resolver := mirror.NewResolver(prefix)
	copier := store.NewCopier(resolver, b.cfg.StoreCommand, b.runner, b.log)

	var graph *dag.Graph
	if m.DAG != nil {
		gcfg := dag.DefaultGraphConfig()
		gcfg.Filename = m.Name + ".dag"
		gcfg.StatusFile = m.Name + ".status"
		gcfg.StatusUpdatePeriod = b.cfg.StatusUpdatePeriod
		if m.DAG.Filename != "" {
			gcfg.Filename = m.DAG.Filename
		}
		if m.DAG.StatusFile != "" {
			gcfg.StatusFile = m.DAG.StatusFile
		}
		if m.DAG.StatusUpdatePeriod > 0 {
			gcfg.StatusUpdatePeriod = m.DAG.StatusUpdatePeriod
		}
		gcfg.DotFile = m.DAG.DotFile
		gcfg.OtherArgs = m.DAG.OtherArgs
		graph = dag.NewGraph(gcfg, b.log)
	}

	plan := &Plan{Graph: graph, Copier: copier}

	for _, gs := range m.Groups {
		group, err := b.buildGroup(ctx, gs, resolver, copier)
		if err != nil {
			return nil, err
		}
		plan.Groups = append(plan.Groups, group)

		for _, js := range gs.Jobs {
			job := submit.NewJob(js.Name, js.Args)
			job.InputFiles = js.InputFiles
			job.OutputFiles = js.OutputFiles
			job.StagingDir = js.StagingDir
			if js.Quantity > 0 {
				job.Quantity = js.Quantity
			}

			if err := group.Add(job); err != nil {
				return nil, err
			}

			if graph == nil {
				if len(js.Requires) > 0 || js.Retry > 0 {
					return nil, fmt.Errorf("%w: job %s uses requires/retry without a dag section",
						errors.ErrInvalidConfig, js.Name)
				}
				continue
			}
			if err := graph.Add(job, js.Requires, js.Retry); err != nil {
				return nil, err
			}
		}
	}

	return plan, nil
}

func (b *Builder) buildGroup(ctx context.Context, gs GroupSpec, resolver *mirror.Resolver, copier *store.Copier) (*submit.Group, error) {
	cfg := submit.DefaultGroupConfig()
	cfg.Name = gs.Name
	cfg.Exe = gs.Exe
	cfg.SetupScript = gs.SetupScript
	cfg.StoreDir = gs.StoreDir
	cfg.Certificate = gs.Certificate
	cfg.CommonInputFiles = gs.CommonInputFiles
	cfg.AccountingGroup = gs.AccountingGroup
	cfg.OtherArgs = gs.OtherArgs
	cfg.WorkerScript = b.cfg.WorkerScript
	cfg.TemplateFile = b.cfg.SubmitTemplate

	cfg.Filename = gs.Name + ".condor"
	if gs.Filename != "" {
		cfg.Filename = gs.Filename
	}
	if gs.OutDir != "" {
		cfg.OutDir = gs.OutDir
	}
	if gs.ErrDir != "" {
		cfg.ErrDir = gs.ErrDir
	}
	if gs.LogDir != "" {
		cfg.LogDir = gs.LogDir
	}

	cfg.CPUs = b.cfg.DefaultCPUs
	if gs.CPUs > 0 {
		cfg.CPUs = gs.CPUs
	}
	cfg.Memory = b.cfg.DefaultMemory
	if gs.Memory != "" {
		cfg.Memory = gs.Memory
	}
	cfg.Disk = b.cfg.DefaultDisk
	if gs.Disk != "" {
		cfg.Disk = gs.Disk
	}

	if gs.CopyExe != nil {
		cfg.CopyExe = *gs.CopyExe
	}
	if gs.TransferInputs != nil {
		cfg.TransferInputs = *gs.TransferInputs
	}
	if gs.ShareExeSetup != nil {
		cfg.ShareExeSetup = *gs.ShareExeSetup
	}

	return submit.NewGroup(ctx, cfg, resolver, copier, b.log)
}
