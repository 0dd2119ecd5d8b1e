package skills

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PromptSkill is a SKILL.md file: a prompt snippet injected into the oracle
// context when an inbound message matches one of its trigger phrases.
type PromptSkill struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Triggers    []string `yaml:"triggers"`
	Body        string   `yaml:"-"`
}

// PromptLibrary loads and matches prompt skills from the skills directory.
type PromptLibrary struct {
	skillsDir string
	logger    *slog.Logger
}

// NewPromptLibrary creates a library over the given skills directory.
func NewPromptLibrary(skillsDir string, logger *slog.Logger) *PromptLibrary {
	return &PromptLibrary{
		skillsDir: skillsDir,
		logger:    logger.With("component", "prompts"),
	}
}

// LoadAll scans every skill directory for a SKILL.md.
func (p *PromptLibrary) LoadAll() ([]*PromptSkill, error) {
	entries, err := os.ReadDir(p.skillsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("prompts: read dir: %w", err)
	}

	var out []*PromptSkill
	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		path := filepath.Join(p.skillsDir, de.Name(), "SKILL.md")
		ps, err := parsePromptSkill(path)
		if err != nil {
			if !os.IsNotExist(err) {
				p.logger.Warn("skipping prompt skill", "path", path, "error", err)
			}
			continue
		}
		out = append(out, ps)
	}
	return out, nil
}

// Match returns the bodies of every prompt skill whose trigger appears in
// the message, case-insensitively.
func (p *PromptLibrary) Match(message string) []string {
	all, err := p.LoadAll()
	if err != nil {
		p.logger.Warn("prompt match failed", "error", err)
		return nil
	}
	lower := strings.ToLower(message)
	var snippets []string
	for _, ps := range all {
		for _, trigger := range ps.Triggers {
			if trigger != "" && strings.Contains(lower, strings.ToLower(trigger)) {
				snippets = append(snippets, ps.Body)
				break
			}
		}
	}
	return snippets
}

// parsePromptSkill splits SKILL.md into YAML frontmatter and body.
func parsePromptSkill(path string) (*PromptSkill, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var (
		inFrontmatter bool
		yamlLines     []string
		bodyLines     []string
		fmDone        bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		if !fmDone && strings.TrimSpace(line) == "---" {
			if inFrontmatter {
				fmDone = true
			} else {
				inFrontmatter = true
			}
			continue
		}
		if inFrontmatter && !fmDone {
			yamlLines = append(yamlLines, line)
		} else if fmDone {
			bodyLines = append(bodyLines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(yamlLines) == 0 {
		return nil, fmt.Errorf("prompts: no frontmatter in %s", path)
	}

	var ps PromptSkill
	if err := yaml.Unmarshal([]byte(strings.Join(yamlLines, "\n")), &ps); err != nil {
		return nil, fmt.Errorf("prompts: parse frontmatter: %w", err)
	}
	if ps.Name == "" {
		return nil, fmt.Errorf("prompts: %s missing name", path)
	}
	ps.Body = strings.TrimSpace(strings.Join(bodyLines, "\n"))
	return &ps, nil
}
