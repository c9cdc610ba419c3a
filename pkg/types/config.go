package types

import "time"

// EngineMethod names a conversion engine, or "auto" for the built-in
// per-format fallback order.
type EngineMethod string

const (
	MethodAuto        EngineMethod = "auto"
	MethodMSOffice    EngineMethod = "msoffice"
	MethodDocx2PDF    EngineMethod = "docx2pdf"
	MethodLibreOffice EngineMethod = "libreoffice"
	MethodContainer   EngineMethod = "container"
	MethodGotenberg   EngineMethod = "gotenberg"
	MethodImage       EngineMethod = "image"
)

// ImageFormat selects how raster images are embedded in generated PDFs.
type ImageFormat string

const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"
)

// ConversionConfig holds settings for engine selection and image output.
type ConversionConfig struct {
	// Method is the preferred engine, or "auto".
	Method EngineMethod `json:"method" yaml:"method" mapstructure:"method"`

	// BackupMethod is tried once when Method fails. Ignored for "auto".
	BackupMethod EngineMethod `json:"backup_method" yaml:"backup_method" mapstructure:"backup_method"`

	// Timeout bounds each engine attempt (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// DPI maps image pixels to page points (default 300).
	DPI int `json:"dpi" yaml:"dpi" mapstructure:"dpi"`

	// ImageFormat selects PNG (lossless) or JPEG embedding.
	ImageFormat ImageFormat `json:"image_format" yaml:"image_format" mapstructure:"image_format"`

	// JPEGQuality applies when ImageFormat is jpeg (default 95).
	JPEGQuality int `json:"jpeg_quality" yaml:"jpeg_quality" mapstructure:"jpeg_quality"`

	// Verify parses every produced PDF and rejects empty or unreadable output.
	Verify bool `json:"verify" yaml:"verify" mapstructure:"verify"`

	// SkipExisting skips sources whose PDF already exists in the output directory.
	SkipExisting bool `json:"skip_existing" yaml:"skip_existing" mapstructure:"skip_existing"`

	// Jobs bounds concurrent conversions in batch and watch mode (default 1).
	Jobs int `json:"jobs" yaml:"jobs" mapstructure:"jobs"`
}

// PathsConfig holds the directories the converter reads and writes.
type PathsConfig struct {
	// OutputDir receives published PDFs (default "PDF_Output").
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// TempDir holds staged PDFs before they are published (default "outputpdf").
	TempDir string `json:"temp_dir" yaml:"temp_dir" mapstructure:"temp_dir"`

	// DownloadsDir overrides ~/Downloads.
	DownloadsDir string `json:"downloads_dir" yaml:"downloads_dir" mapstructure:"downloads_dir"`

	// LogDir receives log files when file logging is enabled (default "logs").
	LogDir string `json:"log_dir" yaml:"log_dir" mapstructure:"log_dir"`

	// HistoryDB is the SQLite history database path (default "history.db").
	HistoryDB string `json:"history_db" yaml:"history_db" mapstructure:"history_db"`
}

// LoggingConfig holds log level, format and file output settings.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// File enables writing logs to LogDir in addition to stderr.
	File bool `json:"file" yaml:"file" mapstructure:"file"`

	// MaxSize is the size in bytes at which the log file is rotated (default 5 MiB).
	MaxSize int64 `json:"max_size" yaml:"max_size" mapstructure:"max_size"`

	// BackupCount is the number of rotated files kept (default 5).
	BackupCount int `json:"backup_count" yaml:"backup_count" mapstructure:"backup_count"`
}

// EnginesConfig holds per-engine settings.
type EnginesConfig struct {
	// PowerShell is the PowerShell binary used for Office COM automation.
	PowerShell string `json:"powershell" yaml:"powershell" mapstructure:"powershell"`

	// LibreOffice is the soffice binary; empty searches PATH for soffice and libreoffice.
	LibreOffice string `json:"libreoffice" yaml:"libreoffice" mapstructure:"libreoffice"`

	// Docx2PDF is the docx2pdf CLI binary.
	Docx2PDF string `json:"docx2pdf" yaml:"docx2pdf" mapstructure:"docx2pdf"`

	// ContainerImage is a local image that provides soffice on PATH.
	ContainerImage string `json:"container_image" yaml:"container_image" mapstructure:"container_image"`

	// GotenbergURL is the base URL of a Gotenberg service; empty disables it.
	GotenbergURL string `json:"gotenberg_url" yaml:"gotenberg_url" mapstructure:"gotenberg_url"`
}

// ServerConfig holds settings for the local HTTP front-end.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// MaxUpload is the largest accepted upload in bytes (default 50 MiB).
	MaxUpload int64 `json:"max_upload" yaml:"max_upload" mapstructure:"max_upload"`
}

// Config groups every section of office2pdf.yaml.
type Config struct {
	Conversion ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Paths      PathsConfig      `json:"paths" yaml:"paths" mapstructure:"paths"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging" mapstructure:"logging"`
	Engines    EnginesConfig    `json:"engines" yaml:"engines" mapstructure:"engines"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
}

// DefaultConfig returns the configuration used when no file or flag overrides a value.
func DefaultConfig() Config {
	return Config{
		Conversion: ConversionConfig{
			Method:       MethodAuto,
			BackupMethod: MethodLibreOffice,
			Timeout:      60 * time.Second,
			DPI:          300,
			ImageFormat:  ImagePNG,
			JPEGQuality:  95,
			Verify:       true,
			Jobs:         1,
		},
		Paths: PathsConfig{
			OutputDir: "PDF_Output",
			TempDir:   "outputpdf",
			LogDir:    "logs",
			HistoryDB: "history.db",
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "console",
			MaxSize:     5 << 20,
			BackupCount: 5,
		},
		Engines: EnginesConfig{
			PowerShell:     "powershell",
			Docx2PDF:       "docx2pdf",
			ContainerImage: "libreoffice:latest",
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8765",
			MaxUpload: 50 << 20,
		},
	}
}
