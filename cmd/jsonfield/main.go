package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/urfave/cli"

	"github.com/reoring/jsonfield"
	"github.com/reoring/jsonfield/blob"
	"github.com/reoring/jsonfield/fields"
	"github.com/reoring/jsonfield/i18n"
	"github.com/reoring/jsonfield/internal/logging"
	"github.com/reoring/jsonfield/schemafile"
)

var log zerolog.Logger

var (
	schemaFlag = cli.StringFlag{Name: "schema, s", Usage: "schema file (.yaml, .yml, .json or .toml)"}
	entityFlag = cli.StringFlag{Name: "entity, e", Usage: "entity name inside the schema file"}
	inputFlag  = cli.StringFlag{Name: "input, i", Value: "-", Usage: "input JSON document, - for stdin"}
	strictFlag = cli.BoolFlag{Name: "strict", Usage: "reject stored documents with duplicate keys"}
	updateFlag = cli.BoolFlag{Name: "update", Usage: "treat the record as an update of a stored entity"}
)

func main() {
	app := newApp(os.Stdout)
	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("jsonfield failed")
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "jsonfield"
	app.Usage = "encode, decode and inspect composite JSON field values"
	app.Writer = out
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "log-level", Value: "info", Usage: "trace, debug, info, warn, error or off"},
		cli.StringFlag{Name: "lang", Value: "en", Usage: "issue message language (en, ja)"},
	}
	app.Before = func(c *cli.Context) error {
		log = logging.ConfigureRuntime()
		if lvl, ok := logging.ParseLevel(c.GlobalString("log-level")); ok {
			log = log.Level(lvl)
			jsonfield.SetLogger(log)
		}
		i18n.SetLanguage(c.GlobalString("lang"))
		return nil
	}
	app.Commands = []cli.Command{
		{
			Name:   "encode",
			Usage:  "validate a record and print its storage row",
			Flags:  []cli.Flag{schemaFlag, entityFlag, inputFlag, updateFlag},
			Action: encodeAction,
		},
		{
			Name:   "decode",
			Usage:  "decode a storage row into property values",
			Flags:  []cli.Flag{schemaFlag, entityFlag, inputFlag, strictFlag},
			Action: decodeAction,
		},
		{
			Name:   "jsonschema",
			Usage:  "print the JSON Schema of an entity",
			Flags:  []cli.Flag{schemaFlag, entityFlag},
			Action: jsonSchemaAction,
		},
		{
			Name:   "verify",
			Usage:  "check that a stored document is well formed and has no duplicate keys",
			Flags:  []cli.Flag{inputFlag},
			Action: verifyAction,
		},
	}
	return app
}

func loadDefinition(c *cli.Context, opts ...jsonfield.SerializerOption) (*jsonfield.Definition, error) {
	path, name := c.String("schema"), c.String("entity")
	if path == "" || name == "" {
		return nil, errors.New("--schema and --entity are required")
	}
	cat, err := schemafile.Load(path, fields.NewRegistry(opts...))
	if err != nil {
		return nil, err
	}
	def, ok := cat.Entity(name)
	if !ok {
		return nil, errors.Errorf("entity %q not found in %s (have %v)", name, path, cat.Names())
	}
	log.Debug().Str("schema", path).Str("entity", name).Int("fields", len(def.Fields())).Msg("schema loaded")
	return def, nil
}

func readInput(c *cli.Context) ([]byte, error) {
	path := c.String("input")
	if path == "-" || path == "" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	return data, errors.Wrap(err, "read input")
}

func readObject(c *cli.Context) (map[string]any, error) {
	data, err := readInput(c)
	if err != nil {
		return nil, err
	}
	v, err := blob.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Errorf("input must be a JSON object, got %T", v)
	}
	return obj, nil
}

func printJSON(c *cli.Context, v any) error {
	text, err := blob.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, text)
	return err
}

func issuesDocument(iss jsonfield.Issues) []any {
	out := make([]any, 0, len(iss))
	for _, it := range iss {
		entry := map[string]any{"path": it.Path, "code": it.Code, "message": it.Message}
		if len(it.Params) > 0 {
			entry["params"] = it.Params
		}
		out = append(out, entry)
	}
	return out
}

func encodeAction(c *cli.Context) error {
	def, err := loadDefinition(c)
	if err != nil {
		return err
	}
	values, err := readObject(c)
	if err != nil {
		return err
	}
	existence := jsonfield.NewExistence()
	existence.Entity = def.Name()
	existence.Exists = c.Bool("update")

	row, err := def.Encode(context.Background(), existence, values, jsonfield.NewWriteContext(def.Name()))
	if iss, ok := jsonfield.AsIssues(err); ok {
		if perr := printJSON(c, map[string]any{"errors": issuesDocument(iss)}); perr != nil {
			return perr
		}
		return cli.NewExitError(fmt.Sprintf("%d validation issue(s)", len(iss)), 2)
	}
	if err != nil {
		return err
	}
	return printJSON(c, row)
}

func decodeAction(c *cli.Context) error {
	var opts []jsonfield.SerializerOption
	if c.Bool("strict") {
		opts = append(opts, jsonfield.WithStrictDecode())
	}
	def, err := loadDefinition(c, opts...)
	if err != nil {
		return err
	}
	row, err := readObject(c)
	if err != nil {
		return err
	}
	values, err := def.Decode(context.Background(), row)
	if err != nil {
		return err
	}
	return printJSON(c, values)
}

func jsonSchemaAction(c *cli.Context) error {
	def, err := loadDefinition(c)
	if err != nil {
		return err
	}
	return printJSON(c, def.JSONSchema())
}

func verifyAction(c *cli.Context) error {
	data, err := readInput(c)
	if err != nil {
		return err
	}
	if err := blob.Verify(data); err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	_, err = fmt.Fprintln(c.App.Writer, "ok")
	return err
}
