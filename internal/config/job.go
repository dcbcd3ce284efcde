package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
)

// Job is a YAML file describing one or more pipeline runs.
//
//	runs:
//	  - input: data/sales.xlsx
//	    output_format: parquet
//	    lookup:
//	      path: data/regions.csv
//	      key: region_id
//	      fields: [region_name]
type Job struct {
	Runs []JobRun `yaml:"runs"`
}

// JobRun is a single run inside a job file.
type JobRun struct {
	Input        string     `yaml:"input"`
	Output       string     `yaml:"output"`
	OutputFormat string     `yaml:"output_format"`
	ConvertDir   string     `yaml:"convert_dir"`
	Delimiter    string     `yaml:"delimiter"`
	DryRun       bool       `yaml:"dry_run"`
	Lookup       *JobLookup `yaml:"lookup"`
}

// JobLookup configures enrichment for a run.
type JobLookup struct {
	Path    string   `yaml:"path"`
	Key     string   `yaml:"key"`
	Fields  []string `yaml:"fields"`
	NoCache bool     `yaml:"no_cache"`
}

// LoadJob reads and validates a job file. Relative paths inside the file are
// resolved against the file's directory.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	job, err := ParseJob(data)
	if err != nil {
		return nil, fmt.Errorf("job file %s: %w", path, err)
	}

	job.resolve(filepath.Dir(path))
	return job, nil
}

// ParseJob decodes and validates job YAML without touching the filesystem.
func ParseJob(data []byte) (*Job, error) {
	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// Validate reports every problem in the job at once.
func (j *Job) Validate() error {
	var errs []string

	if len(j.Runs) == 0 {
		errs = append(errs, "runs: at least one run is required")
	}

	validOutputs := map[string]bool{"": true, "csv": true, "parquet": true, "postgres": true}
	for i, r := range j.Runs {
		prefix := fmt.Sprintf("runs[%d]", i)
		if strings.TrimSpace(r.Input) == "" {
			errs = append(errs, prefix+".input is required")
		}
		if !validOutputs[strings.ToLower(r.OutputFormat)] {
			errs = append(errs, fmt.Sprintf("%s.output_format (%q) must be one of: csv, parquet, postgres", prefix, r.OutputFormat))
		}
		if r.Lookup == nil {
			continue
		}
		if r.Lookup.Path == "" {
			errs = append(errs, prefix+".lookup.path is required")
		}
		if r.Lookup.Key == "" {
			errs = append(errs, prefix+".lookup.key is required")
		}
		if len(r.Lookup.Fields) == 0 {
			errs = append(errs, prefix+".lookup.fields must list at least one column")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (j *Job) resolve(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range j.Runs {
		r := &j.Runs[i]
		r.Input = abs(r.Input)
		r.Output = abs(r.Output)
		r.ConvertDir = abs(r.ConvertDir)
		if r.Lookup != nil {
			r.Lookup.Path = abs(r.Lookup.Path)
		}
	}
}
