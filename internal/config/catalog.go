package config

type Catalog struct {
	// ImportEncoding is the WHATWG label used to decode supplier files.
	ImportEncoding string `env:"CATALOG_IMPORT_ENCODING" envDefault:"windows-1254"`
	MaxImportBytes int64  `env:"CATALOG_MAX_IMPORT_BYTES" envDefault:"33554432"`
	SearchLimit    int    `env:"CATALOG_SEARCH_LIMIT" envDefault:"50"`
	SearchMinLen   int    `env:"CATALOG_SEARCH_MIN_LEN" envDefault:"2"`
}
