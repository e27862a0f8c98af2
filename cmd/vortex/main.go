// SPDX-License-Identifier: Apache-2.0
// SPDX-FileCopyrightText: Copyright The Vortex Authors

// Command vortex is a small operator CLI for Vortex databases: listing
// tables, inspecting schemas, and creating or dropping tables.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	vortex "github.com/vortexdata/vortex-go/pkg"
	"github.com/vortexdata/vortex-go/pkg/contracts"
)

var (
	log = logrus.New()

	dbURI   string
	verbose bool

	rootCmd = &cobra.Command{
		Use:           "vortex",
		Short:         "Manage Vortex databases",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
)

func init() {
	fs := rootCmd.PersistentFlags()
	fs.StringVar(&dbURI, "uri", ".", "database `uri` (directory path or s3://bucket/prefix)")
	fs.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(tablesCmd(), schemaCmd(), createCmd(), dropCmd(), countCmd(), versionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func connect(ctx context.Context) (contracts.IConnection, error) {
	return vortex.Connect(ctx, dbURI, &contracts.ConnectionOptions{Logger: log})
}

func tablesCmd() *cobra.Command {
	var startAfter string
	var limit int

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables in a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			opts := &contracts.TableNamesOptions{}
			if startAfter != "" {
				opts.StartAfter = &startAfter
			}
			if limit > 0 {
				opts.Limit = &limit
			}

			names, err := conn.TableNames(cmd.Context(), opts)
			if err != nil {
				return err
			}

			w := tablewriter.NewWriter(cmd.OutOrStdout())
			w.SetHeader([]string{"Table"})
			for _, name := range names {
				w.Append([]string{name})
			}
			w.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&startAfter, "start-after", "", "return only names after this one")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of names to return")
	return cmd
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <table>",
		Short: "Show the schema of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			table, err := conn.OpenTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer table.Close()

			schema, err := table.Schema(cmd.Context())
			if err != nil {
				return err
			}

			w := tablewriter.NewWriter(cmd.OutOrStdout())
			w.SetHeader([]string{"Field", "Type", "Nullable"})
			for _, field := range schema.Fields() {
				w.Append([]string{field.Name, field.Type.String(), strconv.FormatBool(field.Nullable)})
			}
			w.Render()
			return nil
		},
	}
}

func createCmd() *cobra.Command {
	var fields []string
	var mode string

	cmd := &cobra.Command{
		Use:   "create <table>",
		Short: "Create an empty table",
		Long: `Create an empty table from field specs of the form name:type[:nullable],
where type is one of int32, int64, float32, float64, string, binary, bool,
timestamp, or vector:<dim> for a float32 embedding column.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			createMode, err := contracts.ParseCreateTableMode(mode)
			if err != nil {
				return err
			}
			schema, err := buildSchema(fields)
			if err != nil {
				return err
			}

			conn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			table, err := conn.CreateEmptyTable(cmd.Context(), args[0], createMode, schema)
			if err != nil {
				return err
			}
			defer table.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", table.Name())
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&fields, "field", nil, "field spec name:type[:nullable] (repeatable)")
	cmd.Flags().StringVar(&mode, "mode", "create", "conflict policy: create, overwrite, or exist_ok")
	cmd.MarkFlagRequired("field")
	return cmd
}

func dropCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <table>",
		Short: "Drop a table and its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := conn.DropTable(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped %s\n", args[0])
			return nil
		},
	}
}

func countCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count <table>",
		Short: "Count the rows in a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			table, err := conn.OpenTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer table.Close()

			count, err := table.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), count)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of vortex",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), vortex.Version)
		},
	}
}

func buildSchema(specs []string) (contracts.ISchema, error) {
	builder := vortex.NewSchemaBuilder()
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		if len(parts) < 2 {
			return nil, fmt.Errorf("invalid field spec %q, want name:type[:nullable]", spec)
		}
		name, typ := parts[0], parts[1]

		rest := parts[2:]
		if typ == "vector" {
			if len(rest) == 0 {
				return nil, fmt.Errorf("invalid field spec %q, want %s:vector:<dim>", spec, name)
			}
			dim, err := strconv.Atoi(rest[0])
			if err != nil || dim <= 0 {
				return nil, fmt.Errorf("invalid vector dimension in %q", spec)
			}
			rest = rest[1:]
		}

		nullable := false
		if len(rest) > 0 {
			var err error
			nullable, err = strconv.ParseBool(rest[0])
			if err != nil {
				return nil, fmt.Errorf("invalid nullable flag in %q", spec)
			}
		}

		switch typ {
		case "int32":
			builder.AddInt32Field(name, nullable)
		case "int64":
			builder.AddInt64Field(name, nullable)
		case "float32":
			builder.AddFloat32Field(name, nullable)
		case "float64":
			builder.AddFloat64Field(name, nullable)
		case "string":
			builder.AddStringField(name, nullable)
		case "binary":
			builder.AddBinaryField(name, nullable)
		case "bool":
			builder.AddBooleanField(name, nullable)
		case "timestamp":
			builder.AddTimestampField(name, arrow.Microsecond, nullable)
		case "vector":
			dim, _ := strconv.Atoi(strings.Split(spec, ":")[2])
			builder.AddVectorField(name, dim, contracts.VectorDataTypeFloat32, nullable)
		default:
			return nil, fmt.Errorf("unknown field type %q in %q", typ, spec)
		}
	}
	return builder.Build()
}
