package content

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/courseindex/internal/enrollment"
	ierrors "github.com/Aman-CERP/courseindex/internal/errors"
)

// Fixture is a content store and its enrollment modes loaded from YAML.
type Fixture struct {
	Store *MemoryStore
	Modes *enrollment.MemoryStore
	// Courses and Libraries list the scopes in file order.
	Courses   []ScopeKey
	Libraries []ScopeKey
}

type fixtureFile struct {
	Courses   []fixtureCourse  `yaml:"courses"`
	Libraries []fixtureLibrary `yaml:"libraries"`
}

type fixtureCourse struct {
	ID          string            `yaml:"id"`
	DisplayName string            `yaml:"display_name"`
	Start       *time.Time        `yaml:"start"`
	Fields      map[string]string `yaml:"fields"`
	About       map[string]string `yaml:"about"`
	Modes       []enrollment.Mode `yaml:"modes"`
	Items       []fixtureItem     `yaml:"items"`
}

type fixtureLibrary struct {
	ID          string        `yaml:"id"`
	DisplayName string        `yaml:"display_name"`
	Items       []fixtureItem `yaml:"items"`
}

type fixtureItem struct {
	Category    string            `yaml:"category"`
	Block       string            `yaml:"block"`
	DisplayName string            `yaml:"display_name"`
	Start       *time.Time        `yaml:"start"`
	Data        string            `yaml:"data"`
	Fields      map[string]string `yaml:"fields"`
	// Published defaults to true.
	Published *bool         `yaml:"published"`
	Children  []fixtureItem `yaml:"children"`
}

// LoadFixture reads a fixture file.
func LoadFixture(path string, opts ...StoreOption) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ierrors.New(ierrors.ErrCodeContentUnreadable, "failed to read fixture", err).
			WithDetail("path", path)
	}
	f, err := ParseFixture(data, opts...)
	if err != nil {
		var ie *ierrors.IndexerError
		if errors.As(err, &ie) {
			ie.WithDetail("path", path)
		}
		return nil, err
	}
	return f, nil
}

// ParseFixture builds a Fixture from YAML.
//
//	courses:
//	  - id: course-v1:Org+Code+Run
//	    display_name: Demo
//	    start: 2015-03-01T00:00:00Z
//	    about: {short_description: "..."}
//	    modes: [{slug: audit}]
//	    items:
//	      - category: chapter
//	        display_name: Week 1
//	        children: [...]
//	libraries:
//	  - id: library-v1:Org+Lib
//	    items: [{category: html, data: "<p>hi</p>"}]
func ParseFixture(data []byte, opts ...StoreOption) (*Fixture, error) {
	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, invalidFixture("invalid YAML", err)
	}

	f := &Fixture{
		Store: NewMemoryStore(opts...),
		Modes: enrollment.NewMemoryStore(),
	}

	for _, c := range file.Courses {
		key, err := ParseScopeKey(c.ID)
		if err != nil || key.IsLibrary() {
			return nil, invalidFixture(fmt.Sprintf("bad course id %q", c.ID), err)
		}
		spec := CourseSpec{DisplayName: c.DisplayName, Fields: c.Fields}
		if c.Start != nil {
			spec.Start = c.Start.UTC()
		}
		if _, err := f.Store.CreateCourse(key, spec); err != nil {
			return nil, invalidFixture("create course "+c.ID, err)
		}
		for name, value := range c.About {
			if err := f.Store.SetAbout(key, name, value); err != nil {
				return nil, invalidFixture("about "+name, err)
			}
		}
		for _, m := range c.Modes {
			m.CourseID = key.String()
			f.Modes.Add(m)
		}
		if err := f.addItems(key.Root(), c.Items, true); err != nil {
			return nil, err
		}
		f.Courses = append(f.Courses, key)
	}

	for _, l := range file.Libraries {
		key, err := ParseScopeKey(l.ID)
		if err != nil || !key.IsLibrary() {
			return nil, invalidFixture(fmt.Sprintf("bad library id %q", l.ID), err)
		}
		if _, err := f.Store.CreateLibrary(key, l.DisplayName); err != nil {
			return nil, invalidFixture("create library "+l.ID, err)
		}
		if err := f.addItems(key.Root(), l.Items, false); err != nil {
			return nil, err
		}
		f.Libraries = append(f.Libraries, key)
	}
	return f, nil
}

func (f *Fixture) addItems(parent Location, items []fixtureItem, course bool) error {
	for _, it := range items {
		publish := course && (it.Published == nil || *it.Published)
		spec := ItemSpec{
			Category:    it.Category,
			Block:       it.Block,
			DisplayName: it.DisplayName,
			Data:        it.Data,
			Fields:      it.Fields,
			Publish:     publish,
		}
		if it.Start != nil {
			start := it.Start.UTC()
			spec.Start = &start
		}
		loc, err := f.Store.CreateItem(parent, spec)
		if err != nil {
			return invalidFixture(fmt.Sprintf("create %s under %s", it.Category, parent), err)
		}
		if err := f.addItems(loc, it.Children, course); err != nil {
			return err
		}
	}
	return nil
}

func invalidFixture(msg string, cause error) error {
	return ierrors.New(ierrors.ErrCodeFixtureInvalid, msg, cause)
}
