package driver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tasktree-dev/tasktree/internal/graph"
	"github.com/tasktree-dev/tasktree/internal/logger"
	"github.com/tasktree-dev/tasktree/internal/platform"
	"github.com/tasktree-dev/tasktree/internal/recipe"
	tterrors "github.com/tasktree-dev/tasktree/pkg/errors"
)

// reservedStatePath and reservedScriptPath are the absolute in-
// container locations the state file and the materialized command
// script are always bind-mounted at, so a nested `tt` invocation
// inside the container finds the same files the host driver wrote
// (spec.md §4.5, "Container execution specifics").
const (
	reservedStatePath  = "/var/run/tasktree/state.json"
	reservedScriptPath = "/var/run/tasktree/run.sh"
)

// imageCache builds a Container runner's image at most once per
// invocation, keyed on the Dockerfile's bytes plus its build args,
// the same sync.Mutex-guarded singleton-map shape as
// plugin.RegisterPlugin's package-level registry.
type imageCache struct {
	mu    sync.Mutex
	built map[string]string // cache key -> image tag
}

func newImageCache() *imageCache {
	return &imageCache{built: map[string]string{}}
}

func (c *imageCache) ensureBuilt(ctx context.Context, spawner platform.ProcessSpawner, fs platform.FileSystem, recipeDir string, cr *recipe.ContainerRunner, log *logger.Logger) (string, error) {
	dockerfilePath := cr.Dockerfile
	if !filepath.IsAbs(dockerfilePath) {
		dockerfilePath = filepath.Join(recipeDir, dockerfilePath)
	}

	data, err := fs.ReadFile(dockerfilePath)
	if err != nil {
		return "", tterrors.NewRunnerBuildFailedError(dockerfilePath, err)
	}

	key := containerCacheKey(data, cr.BuildArgs)

	c.mu.Lock()
	defer c.mu.Unlock()

	if tag, ok := c.built[key]; ok {
		return tag, nil
	}

	tag := "tasktree/" + key[:16]
	contextDir := cr.Context
	if contextDir == "" {
		contextDir = filepath.Dir(dockerfilePath)
	} else if !filepath.IsAbs(contextDir) {
		contextDir = filepath.Join(recipeDir, contextDir)
	}

	args := []string{"build", "-t", tag, "-f", dockerfilePath}
	for _, k := range sortedKeys(cr.BuildArgs) {
		args = append(args, "--build-arg", k+"="+cr.BuildArgs[k])
	}
	args = append(args, contextDir)

	log.WithFields(map[string]any{"image": tag, "dockerfile": dockerfilePath}).Info("building container image")

	spawned, err := spawner.Spawn(ctx, platform.SpawnRequest{Path: "docker", Args: args, Stdout: io.Discard, Stderr: io.Discard})
	if err != nil {
		return "", tterrors.NewRunnerBuildFailedError(tag, err)
	}
	if err := spawned.Wait(); err != nil || spawned.ExitCode() != 0 {
		return "", tterrors.NewRunnerBuildFailedError(tag, err)
	}

	c.built[key] = tag
	return tag, nil
}

func containerCacheKey(dockerfile []byte, buildArgs map[string]string) string {
	h := sha256.New()
	h.Write(dockerfile)
	for _, k := range sortedKeys(buildArgs) {
		h.Write([]byte(k))
		h.Write([]byte("="))
		h.Write([]byte(buildArgs[k]))
		h.Write([]byte("\x00"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// runInContainerRunner launches `docker run`, bind-mounting the state
// file and the materialized script at their reserved paths, applying
// user volumes (rejecting any that collide with the reserved paths),
// ports, a working directory, and host UID:GID mapping unless
// run_as_root is set (spec.md §4.5's container specifics).
func runInContainerRunner(ctx context.Context, spawner platform.ProcessSpawner, fs platform.FileSystem, cr *recipe.ContainerRunner, image string, n *graph.Node, scriptPath string, envList []string, hostStatePath string, mode recipe.TaskOutputMode, log *logger.Logger) (int, error) {
	for _, v := range cr.Volumes {
		if targetsReservedPath(v) {
			return -1, tterrors.NewReservedVolumePathError(n.Task.Name, nil)
		}
	}

	args := []string{"run", "--rm"}
	args = append(args, "-v", hostStatePath+":"+reservedStatePath)
	args = append(args, "-v", scriptPath+":"+reservedScriptPath)
	for _, v := range cr.Volumes {
		args = append(args, "-v", v)
	}
	for _, p := range sortedKeys(cr.Ports) {
		args = append(args, "-p", p+":"+cr.Ports[p])
	}
	for _, e := range envList {
		args = append(args, "-e", e)
	}
	args = append(args, "-e", "TT_STATE_FILE_PATH="+reservedStatePath)

	workingDir := cr.WorkingDir
	if workingDir == "" {
		workingDir = n.WorkingDir
	}
	if workingDir != "" {
		args = append(args, "-w", workingDir)
	}

	if !cr.RunAsRoot {
		if uidGid, ok := hostUIDGID(); ok {
			args = append(args, "--user", uidGid)
		}
	}

	args = append(args, image, "sh", reservedScriptPath)

	stdout, stderr, flush := outputWriters(mode)
	spawned, err := spawner.Spawn(ctx, platform.SpawnRequest{Path: "docker", Args: args, Stdout: stdout, Stderr: stderr})
	if err != nil {
		return -1, err
	}
	waitErr := spawned.Wait()
	flush(waitErr != nil || spawned.ExitCode() != 0)
	return spawned.ExitCode(), nil
}

func targetsReservedPath(volumeSpec string) bool {
	parts := splitVolumeSpec(volumeSpec)
	if len(parts) < 2 {
		return false
	}
	target := parts[1]
	return target == reservedStatePath || target == reservedScriptPath
}

func splitVolumeSpec(spec string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(spec); i++ {
		if spec[i] == ':' {
			parts = append(parts, spec[start:i])
			start = i + 1
		}
	}
	parts = append(parts, spec[start:])
	return parts
}
