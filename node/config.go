// Package node hosts controller instances: it reads a JSON config file,
// builds and supervises the controllers it names, and applies tuning updates
// to them while they run.
package node

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/pidloop/control"
	"go.viam.com/pidloop/message"
)

// SchemaConfig declares one message type and its field kinds.
type SchemaConfig struct {
	Type   string            `json:"type"`
	Fields map[string]string `json:"fields"`
}

// ControllerConfig names one controller and carries its raw attributes.
type ControllerConfig struct {
	Name       string                 `json:"name"`
	Attributes map[string]interface{} `json:"attributes"`
}

// Config is the node-level configuration file.
type Config struct {
	Schemas     []SchemaConfig     `json:"schemas"`
	Controllers []ControllerConfig `json:"controllers"`
}

// ReadConfig reads and parses a node config file.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read config file %q", path)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "cannot parse config file %q", path)
	}
	return &cfg, nil
}

// SchemaRegistry builds a registry from the declared schemas.
func (c *Config) SchemaRegistry() (*message.Registry, error) {
	registry := message.NewRegistry()
	for _, sc := range c.Schemas {
		if sc.Type == "" {
			return nil, errors.New("schema declaration missing type tag")
		}
		fields := make(map[string]message.FieldKind, len(sc.Fields))
		for name, kindName := range sc.Fields {
			kind, err := message.ParseFieldKind(kindName)
			if err != nil {
				return nil, errors.Wrapf(err, "schema %q field %q", sc.Type, name)
			}
			fields[name] = kind
		}
		registry.Register(message.Schema{Type: sc.Type, Fields: fields})
	}
	return registry, nil
}

type namedConfig struct {
	name string
	cfg  control.Config
}

// controllerConfigs decodes every controller entry, enforcing unique
// non-empty names.
func (c *Config) controllerConfigs() ([]namedConfig, error) {
	seen := map[string]bool{}
	out := make([]namedConfig, 0, len(c.Controllers))
	for i, cc := range c.Controllers {
		if cc.Name == "" {
			return nil, utils.NewConfigValidationFieldRequiredError("controllers", "name")
		}
		if seen[cc.Name] {
			return nil, errors.Errorf("duplicate controller name %q (entry %d)", cc.Name, i)
		}
		seen[cc.Name] = true
		decoded, err := control.ParseConfig(cc.Attributes)
		if err != nil {
			return nil, errors.Wrapf(err, "controller %q", cc.Name)
		}
		out = append(out, namedConfig{name: cc.Name, cfg: decoded})
	}
	return out, nil
}
