// Package catalog loads the read-only reference data the runner consumes:
// benefit packages, interventions, directories of patients, providers and
// practitioners, and the named test-case groups. Everything is sourced
// from YAML files in a single directory and never mutated at run time.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/careops/claimrunner/pkg/claim"
	"gopkg.in/yaml.v3"
)

// Catalog file names within the catalog directory.
const (
	packagesFile      = "packages.yaml"
	interventionsFile = "interventions.yaml"
	patientsFile      = "patients.yaml"
	providersFile     = "providers.yaml"
	practitionersFile = "practitioners.yaml"
	testCasesFile     = "testcases.yaml"
)

// Package is a benefit package grouping interventions.
type Package struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Intervention is a billable service definition.
type Intervention struct {
	Code       string      `yaml:"code"`
	Display    string      `yaml:"display"`
	Package    string      `yaml:"package"`
	Complexity string      `yaml:"complexity,omitempty"`
	PerDiem    bool        `yaml:"per_diem,omitempty"`
	Tariff     claim.Money `yaml:"tariff,omitempty"`
}

// Patient is a directory entry for a test patient.
type Patient struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	MemberNumber string `yaml:"member_number,omitempty"`
}

// Provider is a directory entry for a facility.
type Provider struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Level string `yaml:"level,omitempty"`
}

// Practitioner is a directory entry for an individual clinician.
type Practitioner struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Role string `yaml:"role,omitempty"`
}

// Group is a named partition of test cases, typically "positive" and
// "negative". The runner executes a group as one logical batch.
type Group struct {
	Name      string           `yaml:"name"`
	TestCases []claim.TestCase `yaml:"test_cases"`
}

// Catalog is the loaded, immutable reference data set.
type Catalog struct {
	packages      []Package
	interventions map[string]Intervention
	patients      map[string]Patient
	providers     map[string]Provider
	practitioners map[string]Practitioner
	groups        []Group
	byTitle       map[string]*claim.TestCase
}

// Load reads all catalog files from dir. Files for optional directories
// may be absent; test cases are required. Test-case titles must be unique
// across the whole catalog since titles are the join key between
// selection and execution.
func Load(dir string) (*Catalog, error) {
	c := &Catalog{
		interventions: make(map[string]Intervention),
		patients:      make(map[string]Patient),
		providers:     make(map[string]Provider),
		practitioners: make(map[string]Practitioner),
		byTitle:       make(map[string]*claim.TestCase),
	}

	if err := readYAML(dir, packagesFile, true, &c.packages); err != nil {
		return nil, err
	}

	var interventions []Intervention
	if err := readYAML(dir, interventionsFile, true, &interventions); err != nil {
		return nil, err
	}

	for _, iv := range interventions {
		if iv.Code == "" {
			return nil, fmt.Errorf("%s: intervention with empty code", interventionsFile)
		}

		c.interventions[iv.Code] = iv
	}

	var patients []Patient
	if err := readYAML(dir, patientsFile, true, &patients); err != nil {
		return nil, err
	}

	for _, p := range patients {
		c.patients[p.ID] = p
	}

	var providers []Provider
	if err := readYAML(dir, providersFile, true, &providers); err != nil {
		return nil, err
	}

	for _, p := range providers {
		c.providers[p.ID] = p
	}

	var practitioners []Practitioner
	if err := readYAML(dir, practitionersFile, true, &practitioners); err != nil {
		return nil, err
	}

	for _, p := range practitioners {
		c.practitioners[p.ID] = p
	}

	if err := readYAML(dir, testCasesFile, false, &c.groups); err != nil {
		return nil, err
	}

	for gi := range c.groups {
		g := &c.groups[gi]
		if g.Name == "" {
			return nil, fmt.Errorf("%s: group %d has no name", testCasesFile, gi)
		}

		for ti := range g.TestCases {
			tc := &g.TestCases[ti]
			if tc.Title == "" {
				return nil, fmt.Errorf("%s: group %q: test case %d has no title",
					testCasesFile, g.Name, ti)
			}

			if _, exists := c.byTitle[tc.Title]; exists {
				return nil, fmt.Errorf("%s: duplicate test case title %q",
					testCasesFile, tc.Title)
			}

			c.byTitle[tc.Title] = tc
		}
	}

	return c, nil
}

// readYAML decodes one catalog file into out. Optional files that do not
// exist leave out untouched.
func readYAML(dir, name string, optional bool, out any) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("reading %s: %w", name, err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}

	return nil
}

// Packages returns all benefit packages.
func (c *Catalog) Packages() []Package {
	return c.packages
}

// Intervention looks up an intervention by billing code.
func (c *Catalog) Intervention(code string) (Intervention, bool) {
	iv, ok := c.interventions[code]

	return iv, ok
}

// InterventionsByPackage returns all interventions in a package,
// optionally filtered by complexity.
func (c *Catalog) InterventionsByPackage(pkg, complexity string) []Intervention {
	var out []Intervention

	for _, iv := range c.interventions {
		if iv.Package != pkg {
			continue
		}

		if complexity != "" && iv.Complexity != complexity {
			continue
		}

		out = append(out, iv)
	}

	return out
}

// PerDiem reports whether code belongs to the per-diem billing class.
// Unknown codes are flat-priced. Satisfies claim.PerDiemFunc.
func (c *Catalog) PerDiem(code string) bool {
	return c.interventions[code].PerDiem
}

// Patient looks up a patient by directory ID.
func (c *Catalog) Patient(id string) (Patient, bool) {
	p, ok := c.patients[id]

	return p, ok
}

// Provider looks up a provider by directory ID.
func (c *Catalog) Provider(id string) (Provider, bool) {
	p, ok := c.providers[id]

	return p, ok
}

// Practitioner looks up a practitioner by directory ID.
func (c *Catalog) Practitioner(id string) (Practitioner, bool) {
	p, ok := c.practitioners[id]

	return p, ok
}

// Groups returns all test-case groups in file order.
func (c *Catalog) Groups() []Group {
	return c.groups
}

// Group returns the named group.
func (c *Catalog) Group(name string) (Group, bool) {
	for _, g := range c.groups {
		if g.Name == name {
			return g, true
		}
	}

	return Group{}, false
}

// TestCaseByTitle resolves a test case by its unique title.
func (c *Catalog) TestCaseByTitle(title string) (*claim.TestCase, bool) {
	tc, ok := c.byTitle[title]

	return tc, ok
}
