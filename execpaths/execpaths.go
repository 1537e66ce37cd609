// Package execpaths fills in the locations of the third-party tools and
// environments the pipeline rules invoke.
package execpaths

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/carbocation/metaprep/pipeconfig"
	"github.com/carbocation/pfx"
)

// EnvCondaRoot overrides conda discovery when set.
const EnvCondaRoot = "CONDA_ROOT"

// Py2Env is the conda environment that carries the python2-only tools.
const Py2Env = "viper_py2"

const (
	KeyPython2Path   = "python2_pythonpath"
	KeyPython2       = "python2"
	KeyRSeQC         = "rseqc_path"
	KeyPicard        = "picard_path"
	KeyVarScan       = "varscan_path"
	KeyTrust         = "trust_path"
	KeyOptiType      = "optitype_path"
	KeyToken         = "token"
	KeyAnalysisToken = "analysis_token"
)

// DefaultToken names the report directory when no analysis_token is set.
const DefaultToken = "summary_reports"

var condaTimeout = 30 * time.Second

// CondaRoot returns the root of the conda installation: $CONDA_ROOT if set,
// otherwise the output of `conda info --root`.
func CondaRoot(ctx context.Context) (string, error) {
	if root := strings.TrimSpace(os.Getenv(EnvCondaRoot)); root != "" {
		return root, nil
	}

	ctx, cancel := context.WithTimeout(ctx, condaTimeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "conda", "info", "--root")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", pfx.Err(fmt.Errorf("conda info --root: %w (stderr: %s)", err, strings.TrimSpace(stderr.String())))
	}

	root := strings.TrimSpace(stdout.String())
	if root == "" {
		return "", pfx.Err(fmt.Errorf("conda info --root printed nothing"))
	}

	return root, nil
}

// Resolve returns the fragment of tool paths to lay over cfg. The python2
// library path and the token are always set; every other path is only filled
// in when cfg leaves it unset or empty.
func Resolve(cfg pipeconfig.Config, condaRoot string) pipeconfig.Config {
	env := filepath.Join(condaRoot, "envs", Py2Env)
	bin := filepath.Join(env, "bin")

	b := pipeconfig.NewBuilder().
		Set(KeyPython2Path, filepath.Join(env, "lib", "python2.7", "site-packages"))

	for _, v := range []struct {
		Key     string
		Default string
	}{
		{KeyPython2, filepath.Join(bin, "python2.7")},
		{KeyRSeQC, bin},
		{KeyPicard, "picard"},
		{KeyVarScan, "varscan"},
	} {
		if cfg.IsEmpty(v.Key) {
			b.Set(v.Key, v.Default)
		}
	}

	if cfg.IsEmpty(KeyAnalysisToken) {
		b.Set(KeyToken, DefaultToken)
	} else {
		v, _ := cfg.Get(KeyAnalysisToken)
		b.Set(KeyToken, v)
	}

	if cfg.IsEmpty(KeyTrust) {
		b.Set(KeyTrust, filepath.Join(bin, "trust"))
	}
	if cfg.IsEmpty(KeyOptiType) {
		b.Set(KeyOptiType, bin)
	}

	return b.Config()
}

// Lookup reports the full path of an executable. Bare names are searched for
// on $PATH; names with a directory component are checked directly.
func Lookup(name string) (string, bool) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}

	return path, true
}

// MissingTools lists the executable keys of cfg whose values cannot be found.
// Directory-valued keys (rseqc_path, optitype_path) are not checked.
func MissingTools(cfg pipeconfig.Config) []string {
	var out []string
	for _, key := range []string{KeyPython2, KeyPicard, KeyVarScan, KeyTrust} {
		name, ok := cfg.String(key)
		if !ok || name == "" {
			continue
		}
		if _, found := Lookup(name); !found {
			out = append(out, key)
		}
	}

	return out
}
