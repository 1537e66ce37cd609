// Package refconfig merges per-assembly reference defaults into a run
// configuration. User-supplied values always win.
package refconfig

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/carbocation/metaprep"
	"github.com/carbocation/metaprep/pipeconfig"
	"github.com/carbocation/pfx"
	"github.com/kardianos/osext"
	log "github.com/sirupsen/logrus"
)

const (
	// KeyAssembly selects the block of the reference file to merge.
	KeyAssembly = "assembly"

	// KeyRef names the reference file.
	KeyRef = "ref"

	KeyConfigFile = "config_file"

	// ConfigFileValue is written to KeyConfigFile on every update so that
	// rules depending on it are re-evaluated when the configuration changes.
	ConfigFileValue = "config.yaml"

	// DefaultReferenceFile is looked for beside the executable when the run
	// configuration has no ref key.
	DefaultReferenceFile = "ref.yaml"
)

// StringKeys are coerced to their string form by Update. The pipeline rules
// interpolate them into shell commands and file names.
var StringKeys = []string{
	"RPKM_threshold",
	"min_num_samples_expressing_at_threshold",
	"numgenes_plots",
	"num_kmeans_clust",
	"filter_mirna",
}

var (
	ErrNoAssembly      = errors.New("run configuration has no assembly")
	ErrUnknownAssembly = errors.New("assembly not found in reference file")
)

// Reference is a parsed reference file: assembly name to the defaults for
// that assembly, in file order.
type Reference struct {
	assemblies pipeconfig.Config
}

// ParseReference decodes a reference YAML document.
func ParseReference(data []byte) (Reference, error) {
	c, err := pipeconfig.Parse(data)
	if err != nil {
		return Reference{}, pfx.Err(err)
	}

	for _, assembly := range c.Keys() {
		v, _ := c.Get(assembly)
		if v == nil {
			continue
		}
		if _, ok := v.(pipeconfig.Config); !ok {
			return Reference{}, fmt.Errorf("assembly %s: expected a mapping of defaults, got %T", assembly, v)
		}
	}

	return Reference{assemblies: c}, nil
}

// LoadReference reads the reference file at path, which may be local or
// gs://.
func LoadReference(store *metaprep.Store, path string) (Reference, error) {
	data, err := store.ReadFile(path)
	if err != nil {
		return Reference{}, pfx.Err(err)
	}

	ref, err := ParseReference(data)
	if err != nil {
		return Reference{}, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return ref, nil
}

// Assemblies lists the assemblies in file order.
func (r Reference) Assemblies() []string {
	return r.assemblies.Keys()
}

// Defaults returns the default keys for assembly. An assembly with an empty
// block has no defaults.
func (r Reference) Defaults(assembly string) (pipeconfig.Config, error) {
	if !r.assemblies.Has(assembly) {
		return pipeconfig.Config{}, fmt.Errorf("%q: %w", assembly, ErrUnknownAssembly)
	}

	defaults, _ := r.assemblies.Map(assembly)
	return defaults, nil
}

// Merge returns cfg with every default for cfg's assembly that cfg does not
// already define. Keys present in cfg are never overwritten, even if empty.
func Merge(cfg pipeconfig.Config, ref Reference) (pipeconfig.Config, error) {
	assembly, ok := cfg.String(KeyAssembly)
	if !ok || assembly == "" {
		return pipeconfig.Config{}, ErrNoAssembly
	}

	defaults, err := ref.Defaults(assembly)
	if err != nil {
		return pipeconfig.Config{}, err
	}

	return cfg.WithDefaults(defaults), nil
}

// DefaultReferencePath is DefaultReferenceFile in the executable's directory.
func DefaultReferencePath() (string, error) {
	folder, err := osext.ExecutableFolder()
	if err != nil {
		return "", pfx.Err(err)
	}

	return filepath.Join(folder, DefaultReferenceFile), nil
}

// ReferencePath is cfg's ref key, or DefaultReferencePath when it has none.
func ReferencePath(cfg pipeconfig.Config) (string, error) {
	if path, ok := cfg.String(KeyRef); ok && path != "" {
		return path, nil
	}

	path, err := DefaultReferencePath()
	if err != nil {
		return "", err
	}
	log.Printf("No %s key in the run configuration; using %s", KeyRef, path)

	return path, nil
}

// Update loads the reference file named by cfg, merges it without clobbering,
// sets KeyConfigFile, and coerces the StringKeys that are present to strings.
func Update(cfg pipeconfig.Config, store *metaprep.Store) (pipeconfig.Config, error) {
	path, err := ReferencePath(cfg)
	if err != nil {
		return pipeconfig.Config{}, pfx.Err(err)
	}

	ref, err := LoadReference(store, path)
	if err != nil {
		return pipeconfig.Config{}, pfx.Err(err)
	}

	out, err := Merge(cfg, ref)
	if err != nil {
		return pipeconfig.Config{}, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return Stringify(out.Set(KeyConfigFile, ConfigFileValue)), nil
}

// Stringify returns cfg with each of the StringKeys it holds replaced by its
// string form. Absent keys stay absent.
func Stringify(cfg pipeconfig.Config) pipeconfig.Config {
	b := pipeconfig.NewBuilder()
	for _, k := range StringKeys {
		v, exists := cfg.Get(k)
		if !exists {
			continue
		}
		b.Set(k, pipeconfig.FormatScalar(v))
	}

	return cfg.With(b.Config())
}
