package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// descriptor is the on-disk shape of one mapping file
type descriptor struct {
	Entity string    `yaml:"entity"`
	Type   string    `yaml:"type"`
	Table  string    `yaml:"table"`
	Model  string    `yaml:"model"`
	Fields yaml.Node `yaml:"fields"`

	OneToOne   map[string]relationSpec `yaml:"OneToOne"`
	OneToMany  map[string]relationSpec `yaml:"OneToMany"`
	ManyToOne  map[string]relationSpec `yaml:"ManyToOne"`
	ManyToMany map[string]relationSpec `yaml:"ManyToMany"`
}

type fieldSpec struct {
	Type       string `yaml:"type"`
	ColumnName string `yaml:"columnName"`
	Length     *int   `yaml:"length"`
	Nullable   bool   `yaml:"nullable"`
	Primary    bool   `yaml:"primary"`
	ID         bool   `yaml:"id"`
}

type relationSpec struct {
	Target       string     `yaml:"target"`
	TargetEntity string     `yaml:"targetEntity"`
	JoinColumn   string     `yaml:"joinColumn"`
	JoinTable    string     `yaml:"joinTable"`
	MappedBy     string     `yaml:"mappedBy"`
	InversedBy   string     `yaml:"inversedBy"`
	Cascade      StringList `yaml:"cascade"`
}

// StringList is a YAML value that can be either a string or a list of strings
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler for StringList
func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*s = []string{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("expected string or list, got %v", node.Kind)
	}
}

// Parse decodes a single mapping descriptor. name is used as the entity name
// when the descriptor has no entity key.
func Parse(name string, data []byte) (*EntityMetadata, error) {
	var d descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, newMetadataError(name, fmt.Sprintf("invalid descriptor: %v", err))
	}

	if d.Entity != "" {
		name = d.Entity
	}
	if name == "" {
		return nil, newMetadataError("", "descriptor has no entity name")
	}

	meta := NewEntityMetadata(name, d.Table, d.Model)
	if d.Type != "" {
		meta.QualifiedType = d.Type
	}

	if err := parseFields(meta, &d.Fields); err != nil {
		return nil, err
	}

	blocks := map[RelationKind]map[string]relationSpec{
		OneToOne:   d.OneToOne,
		OneToMany:  d.OneToMany,
		ManyToOne:  d.ManyToOne,
		ManyToMany: d.ManyToMany,
	}
	for _, kind := range RelationKinds {
		for _, attr := range sortedKeys(blocks[kind]) {
			rel, err := parseRelation(meta.Name, kind, attr, blocks[kind][attr])
			if err != nil {
				return nil, err
			}
			meta.AddRelation(rel)
		}
	}

	if err := meta.validate(); err != nil {
		return nil, err
	}
	return meta, nil
}

// ParseFile reads and parses a descriptor file
func ParseFile(path string) (*EntityMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor %s: %w", path, err)
	}
	meta, err := Parse(entityNameFromFile(path), data)
	if err != nil {
		return nil, err
	}
	meta.SourceFile = path
	return meta, nil
}

// parseFields walks the fields mapping node so declaration order survives
func parseFields(meta *EntityMetadata, node *yaml.Node) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return newMetadataError(meta.Name, "fields must be a mapping")
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		attr := node.Content[i].Value

		var spec fieldSpec
		if node.Content[i+1].Kind == yaml.ScalarNode {
			// shorthand: "title: string"
			spec.Type = node.Content[i+1].Value
		} else if err := node.Content[i+1].Decode(&spec); err != nil {
			return newMetadataError(meta.Name, fmt.Sprintf("field %s: %v", attr, err))
		}

		if spec.Type == "" {
			spec.Type = "string"
		}
		fieldType, err := ParseFieldType(spec.Type)
		if err != nil {
			return newMetadataError(meta.Name, fmt.Sprintf("field %s: %v", attr, err))
		}

		meta.AddField(&Field{
			Name:     attr,
			Type:     fieldType,
			Column:   spec.ColumnName,
			Length:   spec.Length,
			Nullable: spec.Nullable,
			Primary:  spec.Primary || spec.ID,
		})
		if spec.Primary || spec.ID {
			meta.PrimaryKey = attr
		}
	}
	return nil
}

func parseRelation(entityName string, kind RelationKind, attr string, spec relationSpec) (*Relation, error) {
	target := spec.Target
	if target == "" {
		target = spec.TargetEntity
	}
	if target == "" {
		return nil, newMetadataError(entityName, fmt.Sprintf("%s relation %s has no target", kind, attr))
	}
	if spec.MappedBy != "" && spec.InversedBy != "" {
		return nil, newMetadataError(entityName, fmt.Sprintf("relation %s cannot declare both mappedBy and inversedBy", attr))
	}

	rel := &Relation{
		Kind:       kind,
		Attribute:  attr,
		Target:     target,
		JoinColumn: spec.JoinColumn,
		JoinTable:  spec.JoinTable,
		MappedBy:   spec.MappedBy,
		InversedBy: spec.InversedBy,
	}
	for _, c := range spec.Cascade {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "persist":
			rel.Cascade.Persist = true
		case "remove":
			rel.Cascade.Remove = true
		case "all":
			rel.Cascade.Persist = true
			rel.Cascade.Remove = true
		default:
			return nil, newMetadataError(entityName, fmt.Sprintf("relation %s: unknown cascade %q", attr, c))
		}
	}
	return rel, nil
}

// descriptorFiles lists the mapping files of a directory in name order
func descriptorFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yml" || ext == ".yaml" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
