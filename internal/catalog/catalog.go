// Package catalog holds the fixed branch catalog behind the career-path and
// alumni tools.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// PlacementStats summarises a branch's placement record.
type PlacementStats struct {
	AveragePackage string `yaml:"average_package" json:"average_package"`
	HighestPackage string `yaml:"highest_package" json:"highest_package"`
	PlacementRate  string `yaml:"placement_rate" json:"placement_rate"`
}

// Alumni is the alumni and placement record of a branch.
type Alumni struct {
	PlacementStats   PlacementStats `yaml:"placement_stats"`
	TopRecruiters    []string       `yaml:"top_recruiters"`
	AlumniHighlights []string       `yaml:"alumni_highlights"`
	ExternalPrograms []string       `yaml:"external_programs"`
}

// Branch is one catalog entry. Name is lower case.
type Branch struct {
	Name        string   `yaml:"name"`
	CareerPaths []string `yaml:"career_paths"`
	Alumni      Alumni   `yaml:"alumni"`
}

// Catalog is an ordered list of branches.
type Catalog struct {
	branches []Branch
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Branches []Branch `yaml:"branches"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Branches) == 0 {
		return nil, fmt.Errorf("parse catalog: no branches")
	}
	for i := range doc.Branches {
		doc.Branches[i].Name = strings.ToLower(strings.TrimSpace(doc.Branches[i].Name))
	}
	return &Catalog{branches: doc.Branches}, nil
}

// Default returns the embedded catalog. It panics if the embedded document is
// malformed, which is a build defect.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// Branches returns the catalog entries in match order.
func (c *Catalog) Branches() []Branch {
	out := make([]Branch, len(c.branches))
	copy(out, c.branches)
	return out
}

// Match finds the first branch whose name contains branch, or is contained in
// it, ignoring case. A blank branch never matches.
func (c *Catalog) Match(branch string) (Branch, bool) {
	needle := strings.ToLower(strings.TrimSpace(branch))
	// Every name contains the empty string, so a blank query must not reach
	// the containment test.
	if needle == "" {
		return Branch{}, false
	}
	for _, b := range c.branches {
		if strings.Contains(needle, b.Name) || strings.Contains(b.Name, needle) {
			return b, true
		}
	}
	return Branch{}, false
}
