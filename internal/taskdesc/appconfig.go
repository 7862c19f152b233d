package taskdesc

import (
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// AppConfig is the application configuration document an operator
// points a pipeline run at. It names the source product, the dataset
// index to query, and how outputs are produced.
type AppConfig struct {
	SourceProduct    string   `yaml:"source_product"`
	IndexPath        string   `yaml:"index_path"`
	OutputDir        string   `yaml:"output_dir"`
	FilenameTemplate string   `yaml:"filename_template"`
	StackerCommand   []string `yaml:"stacker_command"`
	JobsDir          string   `yaml:"jobs_dir"`
}

// LoadAppConfig reads and validates an app config document. Relative
// paths inside the document are resolved against the document's
// directory so a run can be kicked off from anywhere.
func LoadAppConfig(path string) (*AppConfig, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read app config: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse app config %s: %w", abs, err)
	}
	if cfg.SourceProduct == "" {
		return nil, fmt.Errorf("app config %s: source_product is required", abs)
	}
	if cfg.IndexPath == "" {
		return nil, fmt.Errorf("app config %s: index_path is required", abs)
	}
	if cfg.OutputDir == "" {
		return nil, fmt.Errorf("app config %s: output_dir is required", abs)
	}
	if cfg.FilenameTemplate == "" {
		cfg.FilenameTemplate = "{product}_{x}_{y}_{start}.nc"
	}
	if len(cfg.StackerCommand) == 0 {
		cfg.StackerCommand = []string{"datacube-stacker"}
	}
	if cfg.JobsDir == "" {
		cfg.JobsDir = "runs"
	}
	base := filepath.Dir(abs)
	cfg.IndexPath = resolveAgainst(base, cfg.IndexPath)
	cfg.OutputDir = resolveAgainst(base, cfg.OutputDir)
	cfg.JobsDir = resolveAgainst(base, cfg.JobsDir)
	return &cfg, nil
}

func resolveAgainst(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
