// Package dag assembles jobs into a dependency graph and renders the
// workflow descriptor handed to the scheduler's meta-scheduler.
package dag

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gridsub/gridsub/internal/gridsub/store"
	"github.com/gridsub/gridsub/internal/gridsub/submit"
	"github.com/gridsub/gridsub/pkg/errors"
	"github.com/gridsub/gridsub/pkg/logger"
)

// GraphConfig configures the workflow descriptor.
type GraphConfig struct {
	// Filename is where the workflow descriptor is written
	Filename string

	// StatusFile, when set, makes the meta-scheduler publish periodic
	// status snapshots there
	StatusFile string

	// StatusUpdatePeriod is the snapshot refresh period in seconds
	StatusUpdatePeriod int

	// DotFile, when set, emits a graph description for rendering with dot
	DotFile string

	// OtherArgs are free-form descriptor options, rendered in sorted key
	// order
	OtherArgs map[string]string
}

// DefaultGraphConfig returns the usual workflow settings.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		Filename:           "jobs.dag",
		StatusFile:         "jobs.status",
		StatusUpdatePeriod: 30,
	}
}

type node struct {
	job       *submit.Job
	requires  []string
	retry     int
	extraVars string
}

// Graph is an ordered collection of jobs with dependency edges. Structure
// is validated at render time, not at insertion, so jobs may be added in
// any order.
type Graph struct {
	cfg   GraphConfig
	log   *logger.Logger
	names []string
	nodes map[string]*node

	now func() time.Time
}

// NewGraph creates an empty dependency graph.
func NewGraph(cfg GraphConfig, log *logger.Logger) *Graph {
	return &Graph{
		cfg:   cfg,
		log:   log.WithField("dag", cfg.Filename),
		nodes: make(map[string]*node),
		now:   time.Now,
	}
}

// JobNames collapses jobs to their names, for use as a requires list.
func JobNames(jobs ...*submit.Job) []string {
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name)
	}
	return names
}

// Add registers a job with its prerequisites. Duplicate prerequisite names
// are collapsed; the referenced jobs need not be present yet. With retry > 0
// the meta-scheduler reruns a failed node up to that many times.
func (g *Graph) Add(job *submit.Job, requires []string, retry int) error {
	return g.AddVars(job, requires, retry, "")
}

// AddVars is Add with extra per-node descriptor variables prepended to the
// node's VARS line.
func (g *Graph) AddVars(job *submit.Job, requires []string, retry int, extraVars string) error {
	if job == nil {
		return errors.WrapGraphError("", "add", fmt.Errorf("%w: job must not be nil", errors.ErrInvalidConfig))
	}
	if job.Group() == nil {
		return errors.WrapGraphError(job.Name, "add", errors.ErrNoGroup)
	}
	if _, exists := g.nodes[job.Name]; exists {
		return errors.WrapGraphError(job.Name, "add", errors.ErrDuplicateJob)
	}

	seen := make(map[string]bool, len(requires))
	var deduped []string
	for _, r := range requires {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		deduped = append(deduped, r)
	}

	g.nodes[job.Name] = &node{job: job, requires: deduped, retry: retry, extraVars: extraVars}
	g.names = append(g.names, job.Name)
	return nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.names)
}

// Job returns the named node's job, if present.
func (g *Graph) Job(name string) (*submit.Job, bool) {
	n, ok := g.nodes[name]
	if !ok {
		return nil, false
	}
	return n.job, true
}

// Groups returns the distinct job groups in first-seen node order.
func (g *Graph) Groups() []*submit.Group {
	var groups []*submit.Group
	seen := make(map[*submit.Group]bool)
	for _, name := range g.names {
		grp := g.nodes[name].job.Group()
		if !seen[grp] {
			seen[grp] = true
			groups = append(groups, grp)
		}
	}
	return groups
}

// checkRequirements verifies every prerequisite of the node names an added
// job; the error lists all missing names at once.
func (g *Graph) checkRequirements(name string) error {
	var missing []string
	for _, r := range g.nodes[name].requires {
		if _, ok := g.nodes[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return errors.WrapGraphError(name, "render",
			fmt.Errorf("%w: %s", errors.ErrMissingDependency, strings.Join(missing, ", ")))
	}
	return nil
}

// checkAcyclic walks the node's ancestry breadth-first; the node reappearing
// among its own ancestors means a cycle. Each step swaps in a fresh frontier
// so the walk terminates on any finite graph. Names with no node are skipped;
// checkRequirements reports them when it reaches their parent.
func (g *Graph) checkAcyclic(name string) error {
	frontier := g.nodes[name].requires
	for len(frontier) > 0 {
		var next []string
		for _, p := range frontier {
			parent, ok := g.nodes[p]
			if !ok {
				continue
			}
			ancestors := parent.requires
			for _, a := range ancestors {
				if a == name {
					return errors.WrapGraphError(name, "render",
						fmt.Errorf("%w: %s requires %s", errors.ErrCyclicDependency, p, name))
				}
			}
			next = append(next, ancestors...)
		}
		frontier = next
	}
	return nil
}

// Render validates the graph and produces the workflow descriptor text:
// node listings, parent-child edges, then the status, dot, and free-form
// options.
func (g *Graph) Render() (string, error) {
	contents := []string{
		fmt.Sprintf("# DAG created at %s", g.now().Format("02 January 2006 15:04:05 -0700")),
		"",
	}

	for _, name := range g.names {
		n := g.nodes[name]
		argStr, err := n.job.ArgumentString()
		if err != nil {
			return "", errors.WrapGraphError(name, "render", err)
		}

		contents = append(contents, fmt.Sprintf("JOB %s %s", name, n.job.Group().Filename()))

		// verbatim inside plain quotes; the scheduler's VARS escaping is
		// not Go string-literal escaping
		vars := fmt.Sprintf(`%s="%s"`, submit.JobVarName, argStr)
		if n.extraVars != "" {
			vars = n.extraVars + " " + vars
		}
		contents = append(contents, fmt.Sprintf("VARS %s %s", name, vars))

		if n.retry > 0 {
			contents = append(contents, fmt.Sprintf("RETRY %s %d", name, n.retry))
		}
	}

	for _, name := range g.names {
		if err := g.checkRequirements(name); err != nil {
			return "", err
		}
		if err := g.checkAcyclic(name); err != nil {
			return "", err
		}
		if requires := g.nodes[name].requires; len(requires) > 0 {
			contents = append(contents,
				fmt.Sprintf("PARENT %s CHILD %s", strings.Join(requires, " "), name))
		}
	}

	if g.cfg.StatusFile != "" {
		contents = append(contents, "",
			fmt.Sprintf("NODE_STATUS_FILE %s %d", g.cfg.StatusFile, g.cfg.StatusUpdatePeriod))
	}

	if g.cfg.DotFile != "" {
		pdf := strings.TrimSuffix(g.cfg.DotFile, filepath.Ext(g.cfg.DotFile)) + ".pdf"
		contents = append(contents, "",
			"# Make a visual representation of this DAG (for PDF format):",
			fmt.Sprintf("# dot -Tpdf %s -o %s", g.cfg.DotFile, pdf),
			fmt.Sprintf("DOT %s", g.cfg.DotFile))
	}

	if len(g.cfg.OtherArgs) > 0 {
		contents = append(contents, "")
		keys := make([]string, 0, len(g.cfg.OtherArgs))
		for k := range g.cfg.OtherArgs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			contents = append(contents, fmt.Sprintf("%s = %s", k, g.cfg.OtherArgs[k]))
		}
	}

	contents = append(contents, "")
	return strings.Join(contents, "\n"), nil
}

// Write renders the workflow descriptor and writes it, then writes the
// submit descriptor of every group in the graph in workflow mode. Nothing
// is written when rendering fails.
func (g *Graph) Write() error {
	contents, err := g.Render()
	if err != nil {
		return err
	}

	if dir := filepath.Dir(g.cfg.Filename); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.WrapGraphError("", "write", err)
		}
	}

	g.log.Info("writing workflow descriptor", "file", g.cfg.Filename, "nodes", len(g.names))
	if err := os.WriteFile(g.cfg.Filename, []byte(contents), 0644); err != nil {
		return errors.WrapGraphError("", "write", err)
	}

	for _, grp := range g.Groups() {
		if err := grp.Write(true); err != nil {
			return err
		}
	}
	return nil
}

// Submit writes all descriptors, stages every group's files, and hands the
// workflow to the external meta-scheduler command. submitsPerInterval
// throttles how many node submissions the meta-scheduler makes per cycle.
func (g *Graph) Submit(ctx context.Context, copier *store.Copier, runner store.Runner, dagCmd string, force bool, submitsPerInterval int) error {
	for _, grp := range g.Groups() {
		if grp.Config().Certificate {
			if err := store.CheckCertificate(ctx, runner); err != nil {
				return errors.WrapGraphError("", "submit", err)
			}
			break
		}
	}

	if err := g.Write(); err != nil {
		return err
	}
	for _, grp := range g.Groups() {
		if err := grp.StageFiles(ctx, copier); err != nil {
			return err
		}
	}

	args := []string{g.cfg.Filename}
	if force {
		args = append([]string{"-f"}, args...)
	}

	cmd := store.Command{
		Name: dagCmd,
		Args: args,
		ExtraEnv: []string{
			fmt.Sprintf("_CONDOR_DAGMAN_MAX_SUBMITS_PER_INTERVAL=%d", submitsPerInterval),
		},
	}

	g.log.Info("submitting workflow", "file", g.cfg.Filename, "nodes", len(g.names))
	if err := runner.Run(ctx, cmd); err != nil {
		return errors.WrapGraphError("", "submit", err)
	}

	if g.cfg.StatusFile != "" {
		g.log.Info("check workflow status", "status_file", g.cfg.StatusFile)
	}
	return nil
}
