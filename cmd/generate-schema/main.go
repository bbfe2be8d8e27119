// Command generate-schema writes the JSON schema of the memfs configuration
// file, for editor completion and validation of config.yaml.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/memfs/pkg/config"
	"github.com/spf13/pflag"
)

const schemaID = "https://github.com/marmos91/memfs/config.schema.json"

func main() {
	output := pflag.StringP("output", "o", "config.schema.json", `Schema file to write ("-" for stdout)`)
	pflag.Parse()

	if err := run(*output); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(output string) error {
	if output == "-" {
		return writeSchema(os.Stdout)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create schema file: %w", err)
	}

	if err := writeSchema(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}

	fmt.Printf("JSON schema written to %s\n", output)
	return nil
}

// writeSchema reflects config.Config using the mapstructure keys viper
// decodes with, so the schema matches what the loader accepts.
func writeSchema(w io.Writer) error {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "mapstructure",
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = jsonschema.ID(schemaID)
	schema.Title = "memfs Configuration"
	schema.Description = "Configuration file of the memfs in-memory FUSE filesystem"

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
