package metadata

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/FLORENTA/MiniFramework-sub000/internal/orm/entity"
)

// Store manages the metadata of every mapped entity. It is populated once at
// start-up and read concurrently afterwards.
type Store struct {
	entities  map[string]*EntityMetadata
	qualified map[string]*EntityMetadata
	factories map[string]entity.Factory
	logger    *zap.Logger
	mu        sync.RWMutex
}

// NewStore creates an empty metadata store
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		entities:  make(map[string]*EntityMetadata),
		qualified: make(map[string]*EntityMetadata),
		factories: make(map[string]entity.Factory),
		logger:    logger,
	}
}

// Load parses every descriptor in dir, registers the results and validates
// cross-entity references. Any failure leaves the store unusable and should
// abort start-up.
func (s *Store) Load(dir string) error {
	files, err := descriptorFiles(dir)
	if err != nil {
		return err
	}

	for _, file := range files {
		meta, err := ParseFile(file)
		if err != nil {
			return err
		}
		if err := s.Register(meta); err != nil {
			return err
		}
		s.logger.Debug("loaded entity metadata",
			zap.String("entity", meta.Name),
			zap.String("table", meta.Table),
			zap.String("file", file))
	}

	if err := s.Validate(); err != nil {
		return err
	}

	s.logger.Info("metadata loaded", zap.String("dir", dir), zap.Int("entities", s.Count()))
	return nil
}

// Register adds metadata for one entity
func (s *Store) Register(meta *EntityMetadata) error {
	if meta == nil {
		return newMetadataError("", "cannot register nil metadata")
	}
	if err := meta.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[meta.Name]; exists {
		return newMetadataError(meta.Name, "entity is already registered")
	}
	if meta.QualifiedType == "" {
		meta.QualifiedType = meta.Name
	}
	s.entities[meta.Name] = meta
	s.qualified[meta.QualifiedType] = meta
	return nil
}

// RegisterType binds an entity name to the factory used during hydration
func (s *Store) RegisterType(name string, factory entity.Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[name] = factory
}

// Factory returns the factory for an entity name. Unregistered types
// produce map-backed records.
func (s *Store) Factory(name string) entity.Factory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if factory, ok := s.factories[name]; ok {
		return factory
	}
	if meta, ok := s.lookup(name); ok {
		if factory, ok := s.factories[meta.Name]; ok {
			return factory
		}
		return entity.RecordFactory(meta.Name)
	}
	return entity.RecordFactory(name)
}

// Validate checks that every relation targets a registered entity and that
// inverse attributes, when named, exist on the target
func (s *Store) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range sortedKeys(s.entities) {
		meta := s.entities[name]
		for _, rel := range meta.AllRelations() {
			target, ok := s.lookup(rel.Target)
			if !ok {
				return newMetadataError(meta.Name,
					fmt.Sprintf("relation %s references undeclared entity %s", rel.Attribute, rel.Target))
			}
			if inverse := rel.Inverse(); inverse != "" {
				if _, ok := target.Relation(inverse); !ok {
					return newMetadataError(meta.Name,
						fmt.Sprintf("relation %s: %s has no relation %s", rel.Attribute, target.Name, inverse))
				}
			}
		}
	}
	return nil
}

// Get returns metadata by entity name or qualified type
func (s *Store) Get(name string) (*EntityMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if meta, ok := s.lookup(name); ok {
		return meta, nil
	}
	return nil, newMetadataError(name, "no metadata registered")
}

// Of returns the metadata of an entity instance
func (s *Store) Of(e entity.Entity) (*EntityMetadata, error) {
	if e == nil {
		return nil, newMetadataError("", "cannot resolve metadata of nil entity")
	}
	return s.Get(e.EntityType())
}

// OfSlice returns the metadata of a homogeneous collection using its first element
func (s *Store) OfSlice(entities []entity.Entity) (*EntityMetadata, error) {
	if len(entities) == 0 {
		return nil, newMetadataError("", "cannot resolve metadata of an empty collection")
	}
	return s.Of(entities[0])
}

// All returns a copy of all registered metadata keyed by entity name
func (s *Store) All() map[string]*EntityMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*EntityMetadata, len(s.entities))
	for k, v := range s.entities {
		result[k] = v
	}
	return result
}

// Names returns all entity names, sorted
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.entities))
	for name := range s.entities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered entities
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entities)
}

// DependencyOrder returns entity names so that every entity comes after the
// entities its join columns reference
func (s *Store) DependencyOrder() ([]string, error) {
	graph := NewDependencyGraph(s.All())
	return graph.TopologicalSort()
}

// lookup must be called with the read lock held
func (s *Store) lookup(name string) (*EntityMetadata, bool) {
	if meta, ok := s.entities[name]; ok {
		return meta, true
	}
	meta, ok := s.qualified[name]
	return meta, ok
}
