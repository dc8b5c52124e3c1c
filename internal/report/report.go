// Package report writes a machine readable summary of a conversion run.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/fraugster/csv2parquet/internal/failure"
)

// Report describes one run. Field names are stable, other tools read them.
type Report struct {
	RunID     string    `yaml:"run_id" json:"run_id"`
	StartedAt time.Time `yaml:"started_at" json:"started_at"`
	Duration  string    `yaml:"duration" json:"duration"`

	Input  string `yaml:"input" json:"input"`
	Output string `yaml:"output" json:"output"`
	Errors string `yaml:"errors" json:"errors"`

	Engine      string `yaml:"engine" json:"engine"`
	Compression string `yaml:"compression" json:"compression"`

	Columns         []string `yaml:"columns" json:"columns"`
	RowsWritten     int      `yaml:"rows_written" json:"rows_written"`
	RowsQuarantined int      `yaml:"rows_quarantined" json:"rows_quarantined"`
	MalformedRows   int      `yaml:"malformed_rows" json:"malformed_rows"`
	RaggedRows      int      `yaml:"ragged_rows" json:"ragged_rows"`

	OutputBytes int64  `yaml:"output_bytes" json:"output_bytes"`
	OutputSize  string `yaml:"output_size" json:"output_size"`
	Fingerprint string `yaml:"fingerprint,omitempty" json:"fingerprint,omitempty"`

	Published []string `yaml:"published,omitempty" json:"published,omitempty"`
}

// New starts a report with a fresh run ID.
func New(started time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: started.UTC(),
	}
}

// Finish fills in the derived fields.
func (r *Report) Finish(d time.Duration) {
	r.Duration = d.Round(time.Millisecond).String()
	if r.OutputBytes >= 0 {
		r.OutputSize = humanize.Bytes(uint64(r.OutputBytes))
	}
}

// Marshal encodes r as JSON when the path ends in .json and as YAML
// otherwise.
func Marshal(path string, r *Report) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
	return yaml.Marshal(r)
}

// Write stores r at path.
func Write(path string, r *Report) error {
	data, err := Marshal(path, r)
	if err != nil {
		return failure.Wrap(err, failure.IO, "encoding report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return failure.Wrap(err, failure.IO, "writing report %s", path)
	}
	return nil
}

// Read loads a report written by Write.
func Read(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.Wrap(err, failure.IO, "reading report %s", path)
	}

	r := &Report{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, r)
	} else {
		err = yaml.Unmarshal(data, r)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding report %s: %w", path, err)
	}
	return r, nil
}
