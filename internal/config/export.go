package config

type Export struct {
	FilePrefix string `env:"EXPORT_FILE_PREFIX" envDefault:"sayim"`
}
