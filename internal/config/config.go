// Package config loads the command line configuration. Values come from
// defaults, an optional config file, CSV2PARQUET_* environment variables
// and command line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"

	"github.com/fraugster/csv2parquet/internal/convert"
	"github.com/fraugster/csv2parquet/internal/csvsource"
	"github.com/fraugster/csv2parquet/internal/encoder"
	"github.com/fraugster/csv2parquet/internal/failure"
	"github.com/fraugster/csv2parquet/internal/logging"
	"github.com/fraugster/csv2parquet/internal/metrics"
	"github.com/fraugster/csv2parquet/internal/publish"
	"github.com/fraugster/csv2parquet/internal/tracing"
)

// EnvPrefix is prepended to the upper cased key of every option.
const EnvPrefix = "CSV2PARQUET"

// Config holds every option of a conversion.
type Config struct {
	Input  string `mapstructure:"input" yaml:"input" json:"input"`
	Output string `mapstructure:"output" yaml:"output" json:"output"`
	Errors string `mapstructure:"errors" yaml:"errors" json:"errors"`
	Header bool   `mapstructure:"header" yaml:"header" json:"header"`

	Delimiter        string `mapstructure:"delimiter" yaml:"delimiter" json:"delimiter"`
	LazyQuotes       bool   `mapstructure:"lazy_quotes" yaml:"lazy_quotes" json:"lazy_quotes"`
	Comment          string `mapstructure:"comment" yaml:"comment" json:"comment"`
	TrimLeadingSpace bool   `mapstructure:"trim_leading_space" yaml:"trim_leading_space" json:"trim_leading_space"`
	InputEncoding    string `mapstructure:"input_encoding" yaml:"input_encoding" json:"input_encoding"`
	InputCompression string `mapstructure:"input_compression" yaml:"input_compression" json:"input_compression"`

	Engine      string `mapstructure:"engine" yaml:"engine" json:"engine"`
	Compression string `mapstructure:"compression" yaml:"compression" json:"compression"`
	CreatedBy   string `mapstructure:"created_by" yaml:"created_by" json:"created_by"`

	Progress bool   `mapstructure:"progress" yaml:"progress" json:"progress"`
	Report   string `mapstructure:"report" yaml:"report" json:"report"`

	Metrics metrics.Config `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Tracing tracing.Config `mapstructure:"tracing" yaml:"tracing" json:"tracing"`
	Publish publish.Config `mapstructure:"publish" yaml:"publish" json:"publish"`
	Log     logging.Config `mapstructure:"log" yaml:"log" json:"log"`
}

// SetDefaults registers every option with v. Keys unknown to viper are not
// looked up in the environment, so options without a real default are
// registered with their zero value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input", "")
	v.SetDefault("output", "")
	v.SetDefault("errors", "errors.txt")
	v.SetDefault("header", false)
	v.SetDefault("delimiter", ",")
	v.SetDefault("lazy_quotes", false)
	v.SetDefault("comment", "")
	v.SetDefault("trim_leading_space", false)
	v.SetDefault("input_encoding", "")
	v.SetDefault("input_compression", string(csvsource.CompressionAuto))
	v.SetDefault("engine", string(encoder.EngineArrow))
	v.SetDefault("compression", string(encoder.CodecSnappy))
	v.SetDefault("created_by", encoder.DefaultCreatedBy)
	v.SetDefault("progress", false)
	v.SetDefault("report", "")

	v.SetDefault("metrics.pushgateway", "")
	v.SetDefault("metrics.job", "csv2parquet")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("publish.url", "")
	v.SetDefault("publish.region", "")
	v.SetDefault("publish.endpoint", "")
	v.SetDefault("publish.credentials_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.colorize", false)
}

// Load reads the configuration. If the "config" key is set, that file is
// merged below the environment and any flags already bound to v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, failure.Wrap(err, failure.Config, "reading config file %s", file)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, failure.Wrap(err, failure.Config, "decoding configuration")
	}
	return cfg, nil
}

// Validate checks the options a conversion needs.
func (c *Config) Validate() error {
	if c.Input == "" {
		return failure.New(failure.Config, "empty input file parameter")
	}
	if c.Output == "" {
		return failure.New(failure.Config, "empty output file parameter")
	}
	if c.Errors == "" {
		return failure.New(failure.Config, "empty errors file parameter")
	}
	if c.Input == c.Output || c.Output == c.Errors || c.Input == c.Errors {
		return failure.New(failure.Config, "input, output and errors must be different files")
	}

	if _, err := ParseDelimiter(c.Delimiter); err != nil {
		return err
	}
	if _, err := CommentRune(c.Comment); err != nil {
		return err
	}
	if _, err := encoder.ParseEngine(c.Engine); err != nil {
		return failure.Wrap(err, failure.Config, "invalid engine %q", c.Engine)
	}
	if _, err := encoder.ParseCodec(c.Compression); err != nil {
		return failure.Wrap(err, failure.Config, "invalid compression codec %q", c.Compression)
	}
	if _, err := csvsource.ParseCompression(c.InputCompression); err != nil {
		return failure.Wrap(err, failure.Config, "invalid input compression")
	}
	if err := csvsource.ValidateEncoding(c.InputEncoding); err != nil {
		return failure.Wrap(err, failure.Config, "invalid input encoding")
	}
	if c.Publish.Enabled() {
		if _, err := publish.ParseURL(c.Publish.URL); err != nil {
			return err
		}
		if filepath.Base(c.Output) == filepath.Base(c.Errors) {
			return failure.New(failure.Config, "output and errors need different file names to be published to the same prefix")
		}
	}
	return nil
}

var errEmptyDelimiter = errors.New("delimiter must not be empty")

// ParseDelimiter checks the delimiter option. It may be longer than one
// character. The two character sequence \t stands for a tab, so it can be
// given on a shell.
func ParseDelimiter(s string) (string, error) {
	if s == "" {
		return "", failure.Wrap(errEmptyDelimiter, failure.Config, "invalid CSV field separator")
	}
	s = strings.ReplaceAll(s, `\t`, "\t")
	if !utf8.ValidString(s) || strings.ContainsAny(s, "\r\n\"") || strings.ContainsRune(s, csvsource.Placeholder) {
		return "", failure.New(failure.Config, "invalid CSV field separator %q", s)
	}
	return s, nil
}

// CommentRune turns the comment option into a rune. The empty string
// disables comments.
func CommentRune(s string) (rune, error) {
	if s == "" {
		return 0, nil
	}
	r, err := singleRune(s)
	if err != nil {
		return 0, failure.Wrap(err, failure.Config, "invalid comment character %q", s)
	}
	switch r {
	case '\r', '\n', '"', utf8.RuneError:
		return 0, failure.New(failure.Config, "invalid comment character %q", s)
	}
	return r, nil
}

func singleRune(s string) (rune, error) {
	if s == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) {
		return 0, fmt.Errorf("%q is more than one character", s)
	}
	return r, nil
}

// Pipeline converts the options into a conversion run. Validate must have
// succeeded.
func (c *Config) Pipeline() (convert.Config, error) {
	delim, err := ParseDelimiter(c.Delimiter)
	if err != nil {
		return convert.Config{}, err
	}
	comment, err := CommentRune(c.Comment)
	if err != nil {
		return convert.Config{}, err
	}
	if comment != 0 && delim == string(comment) {
		return convert.Config{}, failure.New(failure.Config, "delimiter and comment character must differ")
	}

	engine, err := encoder.ParseEngine(c.Engine)
	if err != nil {
		return convert.Config{}, failure.Wrap(err, failure.Config, "invalid engine %q", c.Engine)
	}
	codec, err := encoder.ParseCodec(c.Compression)
	if err != nil {
		return convert.Config{}, failure.Wrap(err, failure.Config, "invalid compression codec %q", c.Compression)
	}
	compression, err := csvsource.ParseCompression(c.InputCompression)
	if err != nil {
		return convert.Config{}, failure.Wrap(err, failure.Config, "invalid input compression")
	}

	return convert.Config{
		Input:  c.Input,
		Output: c.Output,
		Errors: c.Errors,
		Header: c.Header,
		Source: csvsource.Options{
			Delimiter:        delim,
			Comment:          comment,
			LazyQuotes:       c.LazyQuotes,
			TrimLeadingSpace: c.TrimLeadingSpace,
		},
		InputCompression: compression,
		InputEncoding:    c.InputEncoding,
		Encoder: encoder.Options{
			Engine:    engine,
			Codec:     codec,
			CreatedBy: c.CreatedBy,
		},
		Report:  c.Report,
		Metrics: c.Metrics,
		Publish: c.Publish,
	}, nil
}
