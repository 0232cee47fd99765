package infra

import (
	"fmt"
	"os"
	"time"

	"crpt-gateway/middleware/ratelimit/domain"

	"gopkg.in/yaml.v3"
)

// GateSpec descreve um gate no arquivo de configuração.
//
//	gates:
//	  - name: documents
//	    unit: 1s
//	    limit: 5
type GateSpec struct {
	Name  string        `yaml:"name"`
	Unit  time.Duration `yaml:"unit"`
	Limit int           `yaml:"limit"`
}

func (s GateSpec) Window() domain.Window {
	return domain.Window{Unit: s.Unit, Limit: s.Limit}
}

type gateFile struct {
	Gates []GateSpec `yaml:"gates"`
}

// LoadGateFile lê e valida o arquivo YAML de gates.
func LoadGateFile(path string) ([]GateSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading gate file %s: %w", path, err)
	}
	return ParseGateFile(data)
}

// ParseGateFile valida cada gate: nome obrigatório e único, janela positiva.
func ParseGateFile(data []byte) ([]GateSpec, error) {
	var f gateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing gate file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Gates))
	for i, s := range f.Gates {
		if s.Name == "" {
			return nil, fmt.Errorf("%w: gate #%d has no name", domain.ErrInvalidConfiguration, i)
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("%w: gate %q declared twice", domain.ErrInvalidConfiguration, s.Name)
		}
		seen[s.Name] = struct{}{}
		if err := s.Window().Validate(); err != nil {
			return nil, fmt.Errorf("gate %q: %w", s.Name, err)
		}
	}
	return f.Gates, nil
}
