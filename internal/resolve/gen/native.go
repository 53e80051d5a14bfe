package gen

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/qobs-build/kfile/internal/msg"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// BuildState represents the state of a build target for incremental builds
type BuildState struct {
	Sources map[string]string `json:"sources,omitempty"` // source file -> hash
	Cflags  []string          `json:"cflags,omitempty"`
	Ldflags []string          `json:"ldflags,omitempty"`
}

// compileJob represents a single compilation job
type compileJob struct {
	src    string
	obj    string
	cflags []string
	cc     string
}

// linkJob represents a linking job
type linkJob struct {
	name    string
	objs    []string
	out     string
	ldflags []string
	isLib   bool
	cc      string
}

// NativeBuilder compiles and links targets directly, skipping sources whose
// fingerprint and flags did not change since the last build.
type NativeBuilder struct {
	cc, cxx    string
	targets    map[string]Target
	buildDir   string
	stateFile  string
	buildState map[string]*BuildState
	jobs       int
	hashCache  map[string]string
}

func NewNativeBuilder() *NativeBuilder {
	return &NativeBuilder{
		targets:    make(map[string]Target),
		buildState: make(map[string]*BuildState),
		jobs:       runtime.NumCPU(),
		hashCache:  make(map[string]string),
	}
}

func (g *NativeBuilder) SetCompiler(cc, cxx string) {
	g.cc, g.cxx = cc, cxx
}

func (g *NativeBuilder) BuildFile() string {
	return "kfile_build_state.json"
}

func (g *NativeBuilder) AddTarget(t Target) {
	g.targets[t.Name] = t
}

func (g *NativeBuilder) Generate() string {
	return "" // no build file needed
}

// Invoke performs the actual build
func (g *NativeBuilder) Invoke(ctx context.Context, buildDir string) error {
	g.buildDir = buildDir
	g.stateFile = filepath.Join(buildDir, g.BuildFile())

	if err := g.loadBuildState(); err != nil {
		msg.Warn("failed to load build state: %v", err)
	}

	compileJobs, linkJobs, err := g.planBuild()
	if err != nil {
		return zerr.Wrap(err, "build planning failed")
	}

	if len(compileJobs) == 0 && len(linkJobs) == 0 {
		msg.Info("no work to do")
		return nil
	}

	if err := g.executeBuild(ctx, compileJobs, linkJobs); err != nil {
		return err
	}

	if err := g.saveBuildState(); err != nil {
		msg.Warn("failed to save build state: %v", err)
	}

	return nil
}

func (g *NativeBuilder) targetNames() []string {
	names := make([]string, 0, len(g.targets))
	for name := range g.targets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// planBuild determines which compile and link jobs are necessary
func (g *NativeBuilder) planBuild() (allCompileJobs []compileJob, allLinkJobs []linkJob, err error) {
	for _, targetName := range g.targetNames() {
		target := g.targets[targetName]
		oldState := g.buildState[targetName]
		needsRelink := false

		// output file is missing
		outputPath := filepath.Join(g.buildDir, target.Name)
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			needsRelink = true
		}

		// link flags changed
		if oldState != nil && !slices.Equal(oldState.Ldflags, target.Ldflags) {
			needsRelink = true
		}

		// compile flags changed: every object is stale
		flagsChanged := oldState != nil && !slices.Equal(oldState.Cflags, target.Cflags)

		var targetCompileJobs []compileJob
		for _, src := range objectsFor(target) {
			objPath := filepath.Join(g.buildDir, src.obj)

			isDirty := flagsChanged
			if !isDirty {
				isDirty, err = g.isSourceFileDirty(src, objPath, oldState)
				if err != nil {
					return nil, nil, zerr.Wrap(err, "could not check status of "+src.src)
				}
			}
			if isDirty {
				compiler := g.cc
				if src.isCxx {
					compiler = g.cxx
				}
				targetCompileJobs = append(targetCompileJobs, compileJob{
					src:    src.src,
					obj:    objPath,
					cflags: target.Cflags,
					cc:     compiler,
				})
			}
		}

		// one or more of its source files were recompiled
		if len(targetCompileJobs) > 0 {
			allCompileJobs = append(allCompileJobs, targetCompileJobs...)
			needsRelink = true
		}

		if needsRelink {
			allLinkJobs = append(allLinkJobs, g.createLinkJob(target))
		}
	}

	return allCompileJobs, allLinkJobs, nil
}

// executeBuild runs the planned compile and link jobs and updates the build state
func (g *NativeBuilder) executeBuild(ctx context.Context, compileJobs []compileJob, linkJobs []linkJob) error {
	if err := runJobs(ctx, compileJobs, runCompileJob, g.jobs); err != nil {
		return zerr.Wrap(err, "compilation failed")
	}
	if err := runJobs(ctx, linkJobs, runLinkJob, g.jobs); err != nil {
		return zerr.Wrap(err, "linking failed")
	}

	for _, job := range linkJobs {
		target, ok := g.targets[job.name]
		if !ok {
			continue
		}
		if err := g.updateBuildState(target); err != nil {
			msg.Warn("failed to update build state for target %s: %v", target.Name, err)
		}
	}

	return nil
}

// isSourceFileDirty checks if a single source file needs to be recompiled
func (g *NativeBuilder) isSourceFileDirty(src sourceFile, objPath string, state *BuildState) (bool, error) {
	if _, err := os.Stat(objPath); os.IsNotExist(err) {
		return true, nil
	}

	if state == nil {
		return true, nil
	}

	hash, err := g.fileHash(src.src)
	if err != nil {
		if os.IsNotExist(err) {
			return true, zerr.Wrap(err, "source file "+src.src+" not found")
		}
		return true, err
	}
	if prevHash, exists := state.Sources[src.src]; !exists || prevHash != hash {
		return true, nil
	}

	return false, nil
}

// createLinkJob constructs a linkJob for a given target
func (g *NativeBuilder) createLinkJob(target Target) linkJob {
	objects := objectsFor(target)
	objs := make([]string, len(objects))
	linker := g.cc
	for i, src := range objects {
		objs[i] = filepath.Join(g.buildDir, src.obj)
		if src.isCxx {
			linker = g.cxx
		}
	}

	return linkJob{
		name:    target.Name,
		objs:    objs,
		out:     filepath.Join(g.buildDir, target.Name),
		ldflags: target.Ldflags,
		isLib:   target.IsLib,
		cc:      linker,
	}
}

// loadBuildState loads the previous build state from disk
func (g *NativeBuilder) loadBuildState() error {
	f, err := os.Open(g.stateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no previous state, that's fine
		}
		return err
	}
	defer f.Close()

	var state map[string]*BuildState
	if err := json.NewDecoder(bufio.NewReader(f)).Decode(&state); err != nil {
		return err
	}
	for name, st := range state {
		if st != nil {
			g.buildState[name] = st
		}
	}
	return nil
}

// saveBuildState saves the current build state to disk
func (g *NativeBuilder) saveBuildState() error {
	data, err := json.MarshalIndent(g.buildState, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(g.stateFile, data, 0o644)
}

// fileHash computes the xxhash of a file with an in-memory cache
func (g *NativeBuilder) fileHash(path string) (string, error) {
	if hash, ok := g.hashCache[path]; ok {
		return hash, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}

	hexHash := strconv.FormatUint(h.Sum64(), 16)
	g.hashCache[path] = hexHash
	return hexHash, nil
}

// runJobs runs jobs in parallel, stopping at the first failure
func runJobs[T any](ctx context.Context, jobs []T, jobfunc func(ctx context.Context, job T) error, limit int) error {
	if len(jobs) == 0 {
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(limit)

	for _, job := range jobs {
		eg.Go(func() error {
			return jobfunc(ctx, job)
		})
	}

	return eg.Wait()
}

func compilerOutput() io.Writer {
	return &msg.IndentWriter{Indent: "    ", W: os.Stderr}
}

// runCompileJob runs a single compilation job
func runCompileJob(ctx context.Context, job compileJob) error {
	if err := os.MkdirAll(filepath.Dir(job.obj), 0o755); err != nil {
		return zerr.Wrap(err, "failed to create object directory")
	}

	args := make([]string, 0, len(job.cflags)+4)
	args = append(args, job.cflags...)
	args = append(args, "-c", job.src, "-o", job.obj)

	cmd := exec.CommandContext(ctx, job.cc, args...)
	cmd.Stdout = compilerOutput()
	cmd.Stderr = compilerOutput()

	msg.Status("Compiling", "%s", job.src)
	return cmd.Run()
}

// runLinkJob runs a single linking job
func runLinkJob(ctx context.Context, job linkJob) error {
	var cmd *exec.Cmd
	if job.isLib {
		args := []string{"rcs", job.out}
		args = append(args, job.objs...)

		cmd = exec.CommandContext(ctx, "ar", args...)
		msg.Status("Archiving", "%s", job.out)
	} else {
		args := []string{"-o", job.out}
		args = append(args, job.objs...)
		args = append(args, job.ldflags...)

		cmd = exec.CommandContext(ctx, job.cc, args...)
		msg.Status("Linking", "%s", job.out)
	}

	cmd.Stdout = compilerOutput()
	cmd.Stderr = compilerOutput()

	return cmd.Run()
}

// updateBuildState records the fingerprints of a target after a successful build
func (g *NativeBuilder) updateBuildState(target Target) error {
	state := &BuildState{
		Sources: make(map[string]string),
		Cflags:  slices.Clone(target.Cflags),
		Ldflags: slices.Clone(target.Ldflags),
	}

	for _, src := range target.Sources {
		hash, err := g.fileHash(src)
		if err != nil {
			return zerr.Wrap(err, "failed to hash source file "+src)
		}
		state.Sources[src] = hash
	}

	g.buildState[target.Name] = state
	return nil
}
