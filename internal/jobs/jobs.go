// Package jobs loads the calculation jobs the runner executes on each pass.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Execution modes, each mapped to one client operation.
const (
	ModeSync     = "sync"
	ModeAsync    = "async"
	ModeBatch    = "batch"
	ModeValidate = "validate"

	dateLayout = "2006-01-02"
)

// Job is one calculation entry declared in the jobs file.
type Job struct {
	ID         string         `json:"id" yaml:"id"`
	Mode       string         `json:"mode" yaml:"mode"`
	Symbols    []string       `json:"symbols" yaml:"symbols"`
	Indicators []string       `json:"indicators" yaml:"indicators"`
	StartDate  string         `json:"start_date" yaml:"start_date"`
	EndDate    string         `json:"end_date" yaml:"end_date"`
	UseCache   *bool          `json:"use_cache" yaml:"use_cache"`
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
}

type jobsFile struct {
	Jobs []Job `json:"jobs" yaml:"jobs"`
}

// Registry holds the loaded, validated jobs in file order.
type Registry struct {
	jobs []Job
	idx  map[string]Job
}

// LoadRegistry loads jobs from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("jobs file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open jobs file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read jobs file: %w", err)
	}

	parsed, err := parseJobsFile(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	return NewRegistry(parsed.Jobs)
}

// NewRegistry validates jobs and indexes them by id.
func NewRegistry(list []Job) (*Registry, error) {
	if len(list) == 0 {
		return nil, errors.New("jobs file contains no jobs entries")
	}

	reg := &Registry{
		jobs: make([]Job, len(list)),
		idx:  make(map[string]Job, len(list)),
	}
	for i := range list {
		j := sanitizeJob(list[i])
		if err := validateJob(j); err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if _, exists := reg.idx[j.ID]; exists {
			return nil, fmt.Errorf("duplicate job id %q", j.ID)
		}
		reg.jobs[i] = j
		reg.idx[j.ID] = j
	}
	return reg, nil
}

func parseJobsFile(data []byte, ext string) (jobsFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   func([]byte, any) error
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var f jobsFile
		if err := d.fn(data, &f); err == nil {
			return f, nil
		}
	}

	return jobsFile{}, errors.New("jobs file format not recognized (expected YAML or JSON)")
}

func sanitizeJob(j Job) Job {
	j.ID = strings.TrimSpace(j.ID)
	j.Mode = strings.ToLower(strings.TrimSpace(j.Mode))
	if j.Mode == "" {
		j.Mode = ModeAsync
	}
	j.Symbols = trimAll(j.Symbols)
	j.Indicators = trimAll(j.Indicators)
	j.StartDate = strings.TrimSpace(j.StartDate)
	j.EndDate = strings.TrimSpace(j.EndDate)
	return j
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func validateJob(j Job) error {
	if j.ID == "" {
		return errors.New("id is required")
	}
	switch j.Mode {
	case ModeSync, ModeAsync, ModeBatch, ModeValidate:
	default:
		return fmt.Errorf("unsupported mode %q for job %q", j.Mode, j.ID)
	}
	if len(j.Symbols) == 0 {
		return fmt.Errorf("symbols are required for job %q", j.ID)
	}
	if len(j.Indicators) == 0 {
		return fmt.Errorf("indicators are required for job %q", j.ID)
	}
	start, err := time.Parse(dateLayout, j.StartDate)
	if err != nil {
		return fmt.Errorf("start_date must be YYYY-MM-DD for job %q", j.ID)
	}
	end, err := time.Parse(dateLayout, j.EndDate)
	if err != nil {
		return fmt.Errorf("end_date must be YYYY-MM-DD for job %q", j.ID)
	}
	if start.After(end) {
		return fmt.Errorf("start_date is after end_date for job %q", j.ID)
	}
	return nil
}

// All returns the jobs in file order.
func (r *Registry) All() []Job {
	if r == nil {
		return nil
	}
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// ByID returns the job with the given id.
func (r *Registry) ByID(id string) (Job, bool) {
	if r == nil {
		return Job{}, false
	}
	j, ok := r.idx[strings.TrimSpace(id)]
	return j, ok
}

// Len returns the number of jobs.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.jobs)
}
