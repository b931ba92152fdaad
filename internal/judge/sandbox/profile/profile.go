// Package profile decides how a solution artifact is executed.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	appErr "olymp/pkg/errors"

	"github.com/google/shlex"
)

// Kind identifies the runtime a solution needs.
type Kind string

const (
	KindExecutable Kind = "executable"
	KindJavaClass  Kind = "java-class"
	KindJavaTask   Kind = "java-task"
)

const javaTaskClass = "Task"

// Java controls the JVM command line.
type Java struct {
	Binary      string   `yaml:"binary"`
	HeapDefault string   `yaml:"heapDefault"`
	ExtraArgs   []string `yaml:"extraArgs"`
}

// DefaultJava mirrors the usual olympiad JVM settings.
func DefaultJava() Java {
	return Java{
		Binary:      "java",
		HeapDefault: "1G",
		ExtraArgs:   []string{"-Xms64M", "-Xss32M"},
	}
}

// Command is a resolved solution invocation.
type Command struct {
	Kind Kind
	Args []string
	// MemoryLimitMB is the limit the monitor should enforce. The JVM enforces
	// its own heap, so Java commands carry zero here.
	MemoryLimitMB float64
}

// Resolver maps solution names found in a problem directory to commands.
type Resolver struct {
	Java Java
}

// NewResolver creates a resolver, filling unset Java settings with defaults.
func NewResolver(java Java) *Resolver {
	def := DefaultJava()
	if java.Binary == "" {
		java.Binary = def.Binary
	}
	if java.HeapDefault == "" {
		java.HeapDefault = def.HeapDefault
	}
	if java.ExtraArgs == nil {
		java.ExtraArgs = def.ExtraArgs
	}
	return &Resolver{Java: java}
}

// Resolve builds the command for solution inside dir. The solution may carry
// extra arguments, split with shell quoting rules.
func (r *Resolver) Resolve(dir, solution string, memoryLimitMB float64) (Command, error) {
	parts, err := shlex.Split(solution)
	if err != nil {
		return Command{}, appErr.Wrapf(err, appErr.UnsupportedExecutable, "parse solution %q failed", solution)
	}
	if len(parts) == 0 {
		return Command{}, appErr.ValidationError("solution", "required")
	}
	name, extra := parts[0], parts[1:]

	switch {
	case isExecutable(dir, name):
		args := append([]string{localPath(name)}, extra...)
		return Command{Kind: KindExecutable, Args: args, MemoryLimitMB: memoryLimitMB}, nil
	case isJavaClass(dir, name):
		args := append(r.javaArgs(memoryLimitMB), name)
		return Command{Kind: KindJavaClass, Args: append(args, extra...)}, nil
	case hasJavaTask(dir, name):
		args := append(r.javaArgs(memoryLimitMB), "-cp", name, javaTaskClass)
		return Command{Kind: KindJavaTask, Args: append(args, extra...)}, nil
	}
	return Command{}, appErr.Newf(appErr.UnsupportedExecutable, "do not know how to run %q", name).
		WithDetail("dir", dir)
}

func (r *Resolver) javaArgs(memoryLimitMB float64) []string {
	heap := "-Xmx" + r.Java.HeapDefault
	if memoryLimitMB > 0 {
		heap = fmt.Sprintf("-Xmx%dM", int(memoryLimitMB))
	}
	args := []string{r.Java.Binary, heap}
	return append(args, r.Java.ExtraArgs...)
}

// IsSolution reports whether name in dir is something Resolve can run.
func IsSolution(dir, name string) bool {
	return isExecutable(dir, name) || isJavaClass(dir, name) || hasJavaTask(dir, name)
}

// List returns the runnable solutions in dir whose names start with prefix,
// without extensions and sorted.
func List(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.SolutionNotFound, "read %s failed", dir)
	}
	seen := make(map[string]bool)
	var out []string
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if !strings.HasPrefix(name, prefix) || seen[name] {
			continue
		}
		seen[name] = true
		if IsSolution(dir, name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func isExecutable(dir, name string) bool {
	return isFile(filepath.Join(dir, name)) || isFile(filepath.Join(dir, name+".exe"))
}

func isJavaClass(dir, name string) bool {
	return !strings.Contains(name, "$") && isFile(filepath.Join(dir, name+".class"))
}

func hasJavaTask(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && info.IsDir() && isFile(filepath.Join(dir, name, javaTaskClass+".class"))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func localPath(name string) string {
	if runtime.GOOS == "windows" || filepath.IsAbs(name) {
		return name
	}
	return "." + string(filepath.Separator) + name
}
