package knowledge

import (
	"os"

	"go.yaml.in/yaml/v3"

	pferrors "github.com/pbelyakov/planforge/pkg/errors"
)

// Role names every mature project is expected to document.
const (
	RolePassport     = "Project Passport"
	RoleArchitecture = "Logical Architecture"
)

// DocumentRole is one mandatory document role with its title-search synonym
// keywords, tried in order. Source organizations are multilingual, so the
// synonym lists carry non-English titles too.
type DocumentRole struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// DefaultRoles returns the built-in mandatory document roles.
func DefaultRoles() []DocumentRole {
	return []DocumentRole{
		{
			Name:     RolePassport,
			Keywords: []string{"Project Passport", "Passport", "Паспорт проекта"},
		},
		{
			Name:     RoleArchitecture,
			Keywords: []string{"Logical Architecture", "System Architecture", "Архитектура"},
		},
	}
}

// rolesFile is the on-disk shape of a roles override file.
type rolesFile struct {
	Roles []DocumentRole `yaml:"roles"`
}

// LoadRoles reads mandatory document roles from a YAML file. An empty path
// returns the defaults.
func LoadRoles(path string) ([]DocumentRole, error) {
	if path == "" {
		return DefaultRoles(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pferrors.NewConfigErrorWithCause("knowledge.roles_file", "failed to read roles file", err)
	}

	var f rolesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, pferrors.NewConfigErrorWithCause("knowledge.roles_file", "failed to parse roles file", err)
	}

	if len(f.Roles) == 0 {
		return nil, pferrors.NewConfigError("knowledge.roles_file", "roles file defines no roles")
	}
	for _, role := range f.Roles {
		if role.Name == "" || len(role.Keywords) == 0 {
			return nil, pferrors.NewConfigError("knowledge.roles_file",
				"every role needs a name and at least one keyword")
		}
	}

	return f.Roles, nil
}
