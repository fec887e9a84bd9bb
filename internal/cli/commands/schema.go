package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FLORENTA/MiniFramework-sub000/internal/cli/ui"
)

var (
	schemaSQLDropFlag   bool
	schemaDropForceFlag bool
)

// NewSchemaCommand creates the schema command
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Generate and apply the database schema",
		Long: `Create or drop the tables described by the mapping descriptors.

Tables are created in dependency order so that every foreign key
references an existing table. Join tables of many-to-many relations are
created after the entity tables.`,
		Example: `  # Print the CREATE TABLE statements
  relmap schema sql

  # Apply them in one transaction
  relmap schema create

  # Drop every mapped table
  relmap schema drop --force`,
	}

	cmd.AddCommand(newSchemaSQLCommand())
	cmd.AddCommand(newSchemaCreateCommand())
	cmd.AddCommand(newSchemaDropCommand())

	return cmd
}

func newSchemaSQLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Print the schema statements without executing them",
		Args:  cobra.NoArgs,
		RunE:  runSchemaSQL,
	}
	cmd.Flags().BoolVar(&schemaSQLDropFlag, "drop", false, "Print DROP TABLE statements instead")
	return cmd
}

func newSchemaCreateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create every mapped table that does not exist yet",
		Args:  cobra.NoArgs,
		RunE:  runSchemaCreate,
	}
}

func newSchemaDropCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop every mapped table",
		Args:  cobra.NoArgs,
		RunE:  runSchemaDrop,
	}
	cmd.Flags().BoolVarP(&schemaDropForceFlag, "force", "f", false, "Confirm that data will be lost")
	return cmd
}

func runSchemaSQL(cmd *cobra.Command, args []string) error {
	o, err := openORM(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer o.Close()

	generate := o.Generator().Generate
	if schemaSQLDropFlag {
		generate = o.Generator().DropStatements
	}
	statements, err := generate()
	if err != nil {
		return err
	}

	for _, stmt := range statements {
		fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", stmt)
	}
	return nil
}

func runSchemaCreate(cmd *cobra.Command, args []string) error {
	o, err := openORM(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer o.Close()

	statements, err := o.Generator().Generate()
	if err != nil {
		return err
	}
	if err := o.Generator().Execute(cmd.Context()); err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.SchemaError(err, noColorFlag))
		return err
	}

	ui.Success(cmd.OutOrStdout(), fmt.Sprintf("Schema created (%d statements)", len(statements)), noColorFlag)
	return nil
}

func runSchemaDrop(cmd *cobra.Command, args []string) error {
	if !schemaDropForceFlag {
		fmt.Fprint(cmd.ErrOrStderr(), ui.Format(ui.Message{
			Level:   ui.LevelWarning,
			Problem: "Dropping the schema deletes every row of every mapped table.",
			Help:    []string{"Confirm with: relmap schema drop --force"},
			NoColor: noColorFlag,
		}))
		return fmt.Errorf("refusing to drop schema without --force")
	}

	o, err := openORM(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer o.Close()

	if err := o.Generator().Drop(cmd.Context()); err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.SchemaError(err, noColorFlag))
		return err
	}

	ui.Success(cmd.OutOrStdout(), "Schema dropped", noColorFlag)
	return nil
}
