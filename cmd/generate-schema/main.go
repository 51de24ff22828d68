package main

import (
	"flag"
	"os"

	"github.com/m-lab/go/cloud/bqx"
	"github.com/m-lab/go/rtx"
	"github.com/m-lab/rspeed/pkg/cycle1/model"

	"cloud.google.com/go/bigquery"
)

var cycle1Schema string

func init() {
	flag.StringVar(&cycle1Schema, "cycle1", "/var/spool/datatypes/cycle1.json", "filename to write cycle1 schema")
}

func main() {
	flag.Parse()
	// Generate and save the schema for autoloading.
	sch, err := bigquery.InferSchema(model.Result{})
	rtx.Must(err, "failed to generate cycle1 schema")
	sch = bqx.RemoveRequired(sch)
	b, err := sch.ToJSONFields()
	rtx.Must(err, "failed to marshal cycle1 schema")
	err = os.WriteFile(cycle1Schema, b, 0o644)
	rtx.Must(err, "failed to write cycle1 schema")
}
