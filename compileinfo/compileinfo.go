// Package compileinfo reports which build of a metaprep binary is running, so
// that a generated configuration can be traced back to the code that wrote
// it.
package compileinfo

import (
	"fmt"
	"runtime/debug"

	log "github.com/sirupsen/logrus"
)

type CompileInfo struct {
	Package    string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (c CompileInfo) String() string {
	mod := ""
	if c.Modified {
		mod = " Files in the repo were modified after that commit."
	}

	return fmt.Sprintf("This %s binary (%s) was built with %s at commit %v at time %v.%s", c.Package, c.Version, c.GoVersion, c.Commit, c.CommitTime, mod)
}

// Fields returns the build details as structured log fields.
func (c CompileInfo) Fields() log.Fields {
	return log.Fields{
		"package":  c.Package,
		"version":  c.Version,
		"go":       c.GoVersion,
		"commit":   c.Commit,
		"time":     c.CommitTime,
		"modified": c.Modified,
	}
}

func Get() CompileInfo {
	z, ok := debug.ReadBuildInfo()
	if !ok {
		return CompileInfo{}
	}

	return fromBuildInfo(z)
}

func fromBuildInfo(z *debug.BuildInfo) CompileInfo {
	out := CompileInfo{
		GoVersion: z.GoVersion,
		Package:   z.Path,
		Version:   z.Main.Version,
	}

	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

// Log writes the build details to the standard logger, which writes to
// os.Stderr unless redirected.
func Log() {
	z := Get()
	log.WithFields(z.Fields()).Info(z.String())
}
