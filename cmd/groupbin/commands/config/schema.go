package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/metorm/groupBin/pkg/config"
)

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema for the config file",
	Long: `Emit a JSON schema describing every setting the config file accepts.

Point an editor at the schema to get completion and inline validation
while editing config.yaml:

  groupbin config schema -o groupbin.schema.json

Without -o the schema is printed to stdout.`,
	RunE: runSchema,
}

func init() {
	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "write the schema to a file instead of stdout")
}

func runSchema(cmd *cobra.Command, args []string) error {
	out, err := renderSchema()
	if err != nil {
		return err
	}

	if schemaOutput == "" {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}
	if err := os.WriteFile(schemaOutput, out, 0o644); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Schema written to %s\n", schemaOutput)
	return nil
}

// renderSchema reflects the configuration struct into an indented JSON
// schema document.
func renderSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		// Inline definitions and reject unknown keys so editors flag
		// typos in section names.
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Version = "https://json-schema.org/draft/2020-12/schema"
	schema.Title = "GroupBin configuration"
	schema.Description = "Settings accepted by the GroupBin server config file"

	return json.MarshalIndent(schema, "", "  ")
}
