package config

import "github.com/spf13/afero"

// fs backs all reads and writes of the user config. Tests replace it with
// afero.NewMemMapFs().
var fs = afero.NewOsFs()
