// Package agent defines the scripted agent stages that execute session
// tasks. Each role has a registered configuration and a Runner; the
// registry doubles as the role lookup the task graph builder consults.
package agent

import "github.com/devswarm/swarm/internal/swarm"

// Config describes one registered agent role.
type Config struct {
	Role        swarm.Role
	Description string
	Emoji       string

	// ArtifactPrefix names the markdown document this agent produces,
	// e.g. "PRD" becomes PRD_<feature>.md.
	ArtifactPrefix string

	// Disabled stages are registered but skipped by the graph builder.
	Disabled bool
}

// Registry holds the role configurations and the ordered workflow stages.
type Registry struct {
	configs map[swarm.Role]Config
	runners map[swarm.Role]Runner
	stages  [][]swarm.Role
}

// DefaultRegistry returns the standard workflow: PM, Architect, Developer,
// QA and Security, then Tester. The PM stage ships disabled; requirements
// review is run on demand, not on every feature.
func DefaultRegistry() *Registry {
	r := &Registry{
		configs: make(map[swarm.Role]Config),
		runners: make(map[swarm.Role]Runner),
		stages: [][]swarm.Role{
			{swarm.RolePM},
			{swarm.RoleArchitect},
			{swarm.RoleDeveloper},
			{swarm.RoleQA, swarm.RoleSecurity},
			{swarm.RoleTester},
		},
	}

	r.Register(Config{
		Role:           swarm.RolePM,
		Description:    "Validate requirements and business scope",
		Emoji:          "📋",
		ArtifactPrefix: "PRD",
		Disabled:       true,
	}, &pmRunner{})
	r.Register(Config{
		Role:           swarm.RoleArchitect,
		Description:    "Design technical architecture and data model",
		Emoji:          "🏗️",
		ArtifactPrefix: "DESIGN",
	}, &architectRunner{})
	r.Register(Config{
		Role:           swarm.RoleDeveloper,
		Description:    "Implement the feature",
		Emoji:          "💻",
		ArtifactPrefix: "IMPLEMENTATION",
	}, &developerRunner{})
	r.Register(Config{
		Role:           swarm.RoleQA,
		Description:    "Review code quality and conventions",
		Emoji:          "🔍",
		ArtifactPrefix: "QA_REPORT",
	}, &qaRunner{})
	r.Register(Config{
		Role:           swarm.RoleSecurity,
		Description:    "Audit for security issues",
		Emoji:          "🛡️",
		ArtifactPrefix: "SECURITY_REPORT",
	}, &securityRunner{})
	r.Register(Config{
		Role:           swarm.RoleTester,
		Description:    "Verify behavior and run test suites",
		Emoji:          "🧪",
		ArtifactPrefix: "TEST_REPORT",
	}, &testerRunner{})

	return r
}

// Register adds or replaces a role configuration and its runner.
func (r *Registry) Register(cfg Config, runner Runner) {
	r.configs[cfg.Role] = cfg
	r.runners[cfg.Role] = runner
}

// Lookup implements swarm.RoleRegistry.
func (r *Registry) Lookup(role swarm.Role) (swarm.RoleInfo, bool) {
	cfg, ok := r.configs[role]
	if !ok {
		return swarm.RoleInfo{}, false
	}
	return swarm.RoleInfo{Description: cfg.Description, Disabled: cfg.Disabled}, true
}

// Config returns the full configuration for a role.
func (r *Registry) Config(role swarm.Role) (Config, bool) {
	cfg, ok := r.configs[role]
	return cfg, ok
}

// Runner returns the runner registered for a role.
func (r *Registry) Runner(role swarm.Role) (Runner, bool) {
	runner, ok := r.runners[role]
	return runner, ok
}

// Stages returns the ordered workflow stages.
func (r *Registry) Stages() [][]swarm.Role {
	return r.stages
}

// SetDisabled toggles a stage on or off.
func (r *Registry) SetDisabled(role swarm.Role, disabled bool) {
	if cfg, ok := r.configs[role]; ok {
		cfg.Disabled = disabled
		r.configs[role] = cfg
	}
}

// Emoji returns the display glyph for a role, or a fallback.
func (r *Registry) Emoji(role swarm.Role) string {
	if cfg, ok := r.configs[role]; ok && cfg.Emoji != "" {
		return cfg.Emoji
	}
	return "⚡"
}
