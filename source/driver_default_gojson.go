// Package source switches the process-wide JSON driver to go-json on import.
package source

import (
	"github.com/reoring/jsonrel"
	drvgojson "github.com/reoring/jsonrel/source/gojson"
)

// init lives outside the root package to avoid an import cycle.
func init() { jsonrel.SetJSONDriver(drvgojson.Driver()) }
