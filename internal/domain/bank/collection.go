package bank

// Collection holds every loaded bank and the current-set selection.
// It is the single source of truth for progress fields during a
// session; persistence only mirrors it.
type Collection struct {
	sets    map[string]*Bank
	order   []string // load order, for stable listing
	current string
}

func NewCollection() *Collection {
	return &Collection{sets: make(map[string]*Bank)}
}

// Load builds a bank from extractor output and registers it under
// sourceName, making it current with the cursor at 0. Loading the same
// name twice replaces the prior set wholesale.
func (c *Collection) Load(t *Table, sourceName string) (*Bank, error) {
	questions, err := questionsFromTable(t)
	if err != nil {
		return nil, err
	}
	b := &Bank{Name: sourceName, Questions: questions}
	if _, exists := c.sets[sourceName]; !exists {
		c.order = append(c.order, sourceName)
	}
	c.sets[sourceName] = b
	c.current = sourceName
	return b, nil
}

// SetCurrent switches the current set, reporting false for an unknown
// name. The target's cursor is left as-is; callers apply the persisted
// position afterward.
func (c *Collection) SetCurrent(name string) bool {
	if _, ok := c.sets[name]; !ok {
		return false
	}
	c.current = name
	return true
}

// Current returns the active bank, or nil when nothing is loaded.
func (c *Collection) Current() *Bank {
	return c.sets[c.current]
}

// CurrentName returns the active set name, "" when nothing is loaded.
func (c *Collection) CurrentName() string {
	return c.current
}

// Get looks a bank up by name.
func (c *Collection) Get(name string) (*Bank, bool) {
	b, ok := c.sets[name]
	return b, ok
}

// Names lists the loaded set names in load order.
func (c *Collection) Names() []string {
	return append([]string{}, c.order...)
}

// Len reports the number of loaded sets.
func (c *Collection) Len() int {
	return len(c.sets)
}
