package repository

// Criteria is an ordered set of equality predicates. The first key is the
// primary predicate; the rest are ANDed in insertion order.
type Criteria struct {
	keys   []string
	values map[string]interface{}
}

// Where starts a criteria set
func Where(key string, value interface{}) *Criteria {
	return (&Criteria{values: make(map[string]interface{})}).And(key, value)
}

// And adds a predicate; repeating a key replaces its value in place
func (c *Criteria) And(key string, value interface{}) *Criteria {
	if c.values == nil {
		c.values = make(map[string]interface{})
	}
	if _, exists := c.values[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.values[key] = value
	return c
}

// Keys returns the keys in insertion order
func (c *Criteria) Keys() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.keys...)
}

// Value returns the value bound to key
func (c *Criteria) Value(key string) interface{} {
	if c == nil {
		return nil
	}
	return c.values[key]
}

// Len returns the number of predicates
func (c *Criteria) Len() int {
	if c == nil {
		return 0
	}
	return len(c.keys)
}
