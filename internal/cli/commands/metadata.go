package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FLORENTA/MiniFramework-sub000/internal/cli/ui"
	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/metadata"
)

// NewMetadataCommand creates the metadata command
func NewMetadataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Inspect the loaded entity mappings",
		Example: `  # List every mapped entity
  relmap metadata list

  # Show fields and relations of one entity
  relmap metadata show Book`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List mapped entities",
		Args:  cobra.NoArgs,
		RunE:  runMetadataList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <entity>",
		Short: "Show the fields and relations of an entity",
		Args:  cobra.ExactArgs(1),
		RunE:  runMetadataShow,
	})

	return cmd
}

// loadStore parses the mapping directory; no database is needed
func loadStore(cmd *cobra.Command) (*metadata.Store, error) {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store := metadata.NewStore(log)
	if err := store.Load(cfg.Mapping.Dir); err != nil {
		return nil, err
	}
	return store, nil
}

func runMetadataList(cmd *cobra.Command, args []string) error {
	store, err := loadStore(cmd)
	if err != nil {
		return err
	}

	table := ui.NewTable(cmd.OutOrStdout(), noColorFlag, "ENTITY", "TABLE", "MODEL", "FIELDS", "RELATIONS")
	for _, name := range store.Names() {
		meta, err := store.Get(name)
		if err != nil {
			return err
		}
		table.AddRow(meta.Name, meta.Table, meta.Model,
			strconv.Itoa(len(meta.Fields)), strconv.Itoa(len(meta.AllRelations())))
	}
	table.Render()
	return nil
}

func runMetadataShow(cmd *cobra.Command, args []string) error {
	store, err := loadStore(cmd)
	if err != nil {
		return err
	}

	meta, err := store.Get(args[0])
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.UnknownEntity(args[0], store.Names(), noColorFlag))
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (table %s)\n", meta.Name, meta.Table)
	if refs := metadata.NewDependencyGraph(store.All()).Dependencies(meta.Name); len(refs) > 0 {
		fmt.Fprintf(out, "references %s\n", strings.Join(refs, ", "))
	}
	fmt.Fprintln(out)

	fields := ui.NewTable(out, noColorFlag, "FIELD", "COLUMN", "TYPE", "OPTIONS")
	for _, f := range meta.Fields {
		fields.AddRow(f.Name, f.ColumnName(), f.Type.String(), fieldOptions(f))
	}
	fields.Render()

	if !meta.HasRelations() {
		return nil
	}

	fmt.Fprintln(out)
	props := store.Properties(meta)
	relations := ui.NewTable(out, noColorFlag, "RELATION", "KIND", "TARGET", "OWNING", "JOIN")
	for _, rel := range meta.AllRelations() {
		join := ""
		if p, ok := props.Relation(rel.Attribute); ok {
			join = joinDescription(p)
		}
		relations.AddRow(rel.Attribute, rel.Kind.String(), rel.Target,
			strconv.FormatBool(rel.IsOwningSide()), join)
	}
	relations.Render()
	return nil
}

func fieldOptions(f *metadata.Field) string {
	var opts []string
	if f.Primary {
		opts = append(opts, "primary")
	}
	if f.Length != nil {
		opts = append(opts, "length="+strconv.Itoa(*f.Length))
	}
	if f.Nullable {
		opts = append(opts, "nullable")
	}
	return strings.Join(opts, ",")
}

func joinDescription(p *metadata.RelationProperty) string {
	if p.Kind == metadata.ManyToMany {
		return fmt.Sprintf("%s(%s, %s)", p.JoinTable, p.OwnJoinColumn, p.TargetJoinColumn)
	}
	return p.JoinColumn
}
