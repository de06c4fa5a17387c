package catalog

// Lesson a catalog entry
type Lesson struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Catalog fixed, ordered set of lessons. It is read-only once built.
type Catalog struct {
	lessons []Lesson
	index   map[string]int
}

var defaultLessons = []Lesson{
	{"Math Basics", "Algebra, equations, arithmetic"},
	{"Advanced Math", "Calculus, integrals, derivatives"},
	{"Python Basics", "Variables, loops, functions"},
	{"Data Science", "Machine learning, AI, statistics"},
	{"Web Development", "HTML, CSS, JavaScript, Flask"},
	{"Blockchain", "Ethereum, smart contracts, Solidity"},
}

// Default returns the built-in lesson catalog
func Default() *Catalog {
	return New(defaultLessons...)
}

// New create a catalog preserving declaration order, later duplicates are ignored
func New(lessons ...Lesson) *Catalog {
	c := &Catalog{
		lessons: make([]Lesson, 0, len(lessons)),
		index:   make(map[string]int, len(lessons)),
	}
	for _, l := range lessons {
		if _, ok := c.index[l.ID]; ok {
			continue
		}
		c.index[l.ID] = len(c.lessons)
		c.lessons = append(c.lessons, l)
	}
	return c
}

// Contains reports whether id is a catalog lesson
func (c *Catalog) Contains(id string) bool {
	_, ok := c.index[id]
	return ok
}

// IndexOf position of id in declaration order, -1 if absent
func (c *Catalog) IndexOf(id string) int {
	if i, ok := c.index[id]; ok {
		return i
	}
	return -1
}

// Len number of lessons
func (c *Catalog) Len() int {
	return len(c.lessons)
}

// IDs lesson identifiers in declaration order
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.lessons))
	for i, l := range c.lessons {
		ids[i] = l.ID
	}
	return ids
}

// Descriptions lesson descriptions in declaration order
func (c *Catalog) Descriptions() []string {
	desc := make([]string, len(c.lessons))
	for i, l := range c.lessons {
		desc[i] = l.Description
	}
	return desc
}

// Lessons copy of all entries in declaration order
func (c *Catalog) Lessons() []Lesson {
	return append([]Lesson(nil), c.lessons...)
}
