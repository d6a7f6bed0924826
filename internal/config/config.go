package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/lenhanpham/gaussian-extractor/internal/fsutil"
	"github.com/lenhanpham/gaussian-extractor/internal/stringsutil"
)

// Config is the effective configuration after defaults, file and environment.
type Config struct {
	OutputExtension  string `mapstructure:"output_extension"`
	InputExtensions  string `mapstructure:"input_extensions"`
	OutputExtensions string `mapstructure:"output_extensions"`
	QuietMode        bool   `mapstructure:"quiet_mode"`

	DefaultTemperature   float64 `mapstructure:"default_temperature"`
	DefaultConcentration float64 `mapstructure:"default_concentration"`
	DefaultSortColumn    int     `mapstructure:"default_sort_column"`
	DefaultOutputFormat  string  `mapstructure:"default_output_format"`
	UseInputTemp         bool    `mapstructure:"use_input_temp"`

	DoneDirectorySuffix string `mapstructure:"done_directory_suffix"`
	ErrorDirectoryName  string `mapstructure:"error_directory_name"`
	PCMDirectoryName    string `mapstructure:"pcm_directory_name"`
	ShowErrorDetails    bool   `mapstructure:"show_error_details"`
	MoveRelatedFiles    bool   `mapstructure:"move_related_files"`

	DefaultThreads  string `mapstructure:"default_threads"`
	MaxFileSizeMB   int    `mapstructure:"max_file_size_mb"`
	MemoryLimitMB   int    `mapstructure:"memory_limit_mb"`
	FileHandleLimit int    `mapstructure:"file_handle_limit"`

	DecimalPrecision int `mapstructure:"decimal_precision"`
}

const (
	DefaultConfigName = ".gaussian_extractor"
	SystemConfigDir   = "/etc/gaussian_extractor"
	EnvPrefix         = "GAUSSIAN_EXTRACTOR"
)

var ErrConfigExists = errors.New("configuration file already exists")

type setting struct {
	key      string
	category string
	help     string
	value    any
}

// settings lists every key in display order.
var settings = []setting{
	{"output_extension", "General", "Extension of Gaussian output files", ".log"},
	{"input_extensions", "General", "Input extensions moved along with their logs", ".com,.gjf,.gau"},
	{"output_extensions", "General", "Recognized output extensions", ".log,.out"},
	{"quiet_mode", "General", "Suppress progress output", false},

	{"default_temperature", "Extraction", "Temperature in K", 298.15},
	{"default_concentration", "Extraction", "Concentration in M for the phase correction", 1.0},
	{"default_sort_column", "Extraction", "Result table sort column", 2},
	{"default_output_format", "Extraction", "text or csv", "text"},
	{"use_input_temp", "Extraction", "Use default_temperature even when a log reports one", false},

	{"done_directory_suffix", "Job checking", "Completed jobs go to <dir>-<suffix>", "done"},
	{"error_directory_name", "Job checking", "Directory for error-terminated jobs", "errorJobs"},
	{"pcm_directory_name", "Job checking", "Directory for PCM failures", "PCMMkU"},
	{"show_error_details", "Job checking", "Print error messages of moved jobs", false},
	{"move_related_files", "Job checking", "Move .com/.gjf/.gau/.chk files with their logs", true},

	{"default_threads", "Performance", "Thread count, half or max", "half"},
	{"max_file_size_mb", "Performance", "Skip larger files", 100},
	{"memory_limit_mb", "Performance", "Memory budget; 0 selects one from system memory", 0},
	{"file_handle_limit", "Performance", "Files open at the same time", 20},

	{"decimal_precision", "Output", "Decimals of energies in result tables", 6},
}

// SetDefaults registers the built-in value of every key.
func SetDefaults() {
	for _, s := range settings {
		viper.SetDefault(s.key, s.value)
	}
}

// Init loads cfgFile, or searches the working directory, $HOME and
// SystemConfigDir for .gaussian_extractor.yaml. A missing file is not an
// error; environment variables prefixed GAUSSIAN_EXTRACTOR_ override it.
func Init(cfgFile string) error {
	SetDefaults()
	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(DefaultConfigName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(SystemConfigDir)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (cfgFile != "" && errors.Is(err, os.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Get returns the effective configuration.
func Get() (*Config, error) {
	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Path returns the loaded config file, or "" when running on defaults.
func Path() string {
	return viper.ConfigFileUsed()
}

// DefaultPath is where Create writes when no path is given.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigName+".yaml"), nil
}

// Template renders a commented configuration file with every default.
func Template() string {
	var b strings.Builder
	b.WriteString("# Gaussian Extractor configuration\n")
	b.WriteString("# Command line flags override these values.\n")
	category := ""
	for _, s := range settings {
		if s.category != category {
			category = s.category
			fmt.Fprintf(&b, "\n# %s\n", category)
		}
		fmt.Fprintf(&b, "# %s\n%s: %s\n", s.help, s.key, yamlValue(s.value))
	}
	return b.String()
}

func yamlValue(v any) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}

// Create writes Template to path. An existing file is kept unless force.
func Create(path string, force bool) error {
	if !force && fsutil.Exists(path) {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return fsutil.WriteStringAtomic(path, Template())
}

// Show prints the effective value of every key grouped by category.
func Show(w io.Writer) {
	source := Path()
	if source == "" {
		source = "(defaults)"
	}
	fmt.Fprintf(w, "Configuration file: %s\n", source)
	category := ""
	for _, s := range settings {
		if s.category != category {
			category = s.category
			fmt.Fprintf(w, "\n=== %s ===\n", category)
		}
		fmt.Fprintf(w, "%-24s %v\n", s.key+":", viper.Get(s.key))
	}
}

// Extensions splits a comma separated extension list.
func Extensions(list string) []string {
	var out []string
	for _, e := range stringsutil.SplitNonEmpty(list, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
