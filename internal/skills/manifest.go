package skills

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// SkillType distinguishes long-running daemons from run-to-completion
// oneshots.
type SkillType string

const (
	TypeDaemon  SkillType = "daemon"
	TypeOneshot SkillType = "oneshot"
)

// Manifest is a skill.toml file: one installable unit of agent capability.
type Manifest struct {
	Name        string            `toml:"name"`
	Description string            `toml:"description"`
	SkillType   SkillType         `toml:"skill_type"`
	Enabled     bool              `toml:"enabled"`
	Entrypoint  string            `toml:"entrypoint"`
	Env         map[string]string `toml:"env"`
	Credentials []CredentialSpec  `toml:"credentials"`
}

// CredentialSpec declares a credential the skill wants injected at spawn.
type CredentialSpec struct {
	Name        string `toml:"name"`
	Label       string `toml:"label"`
	Description string `toml:"description"`
	Required    bool   `toml:"required"`
}

// LoadManifest reads and validates <dir>/skill.toml.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "skill.toml")
	var m Manifest
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("skills: decode %s: %w", path, err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("skills: %s: %w", path, err)
	}
	if _, err := os.Stat(filepath.Join(dir, m.Entrypoint)); err != nil {
		return nil, fmt.Errorf("skills: %s: entrypoint %q: %w", m.Name, m.Entrypoint, err)
	}
	return &m, nil
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("name required")
	}
	if m.Entrypoint == "" {
		return fmt.Errorf("entrypoint required")
	}
	if filepath.IsAbs(m.Entrypoint) {
		return fmt.Errorf("entrypoint must be relative to the skill directory")
	}
	switch m.SkillType {
	case TypeDaemon, TypeOneshot:
	case "":
		return fmt.Errorf("skill_type required (daemon or oneshot)")
	default:
		return fmt.Errorf("unknown skill_type %q", m.SkillType)
	}
	for _, c := range m.Credentials {
		if c.Name == "" {
			return fmt.Errorf("credential entry missing name")
		}
	}
	return nil
}
