package catalog

import (
	_ "embed"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/archsetup/pkg/errors"
)

//go:embed embedded/packages.yaml
var packagesYAML []byte

// Group is a named set of things to install and enable together.
type Group struct {
	Pacman     []string `yaml:"pacman"`
	AUR        []string `yaml:"aur"`
	Flatpak    []string `yaml:"flatpak"`
	Services   []string `yaml:"services"`
	UserGroups []string `yaml:"user_groups"`
}

// Empty reports whether the group has nothing to do.
func (g Group) Empty() bool {
	return len(g.Pacman)+len(g.AUR)+len(g.Flatpak)+len(g.Services)+len(g.UserGroups) == 0
}

// Packages maps group names to groups.
type Packages map[string]Group

// DefaultPackages decodes the embedded package groups.
func DefaultPackages() (Packages, error) {
	return ParsePackages(packagesYAML)
}

// ParsePackages decodes package groups from YAML.
func ParsePackages(data []byte) (Packages, error) {
	var p Packages
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParse, "cannot parse package groups")
	}
	if p == nil {
		p = Packages{}
	}
	return p, nil
}

// Names returns the group names, sorted.
func (p Packages) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Group returns the group called name.
func (p Packages) Group(name string) (Group, error) {
	g, ok := p[name]
	if !ok {
		return Group{}, errors.Newf(errors.ErrNotFound, "no package group %q", name).
			WithDetail("groups", p.Names())
	}
	return g, nil
}
