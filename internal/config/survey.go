package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/goccy/go-yaml"
	"github.com/spf13/viper"

	"github.com/fefal-etl/internal/columns"
	"github.com/fefal-etl/internal/derive"
	"github.com/fefal-etl/internal/logging"
	"github.com/fefal-etl/internal/normalize"
	"github.com/fefal-etl/internal/survey"
	"github.com/fefal-etl/internal/validation"
)

// EnvPrefix scopes environment overrides, e.g. SURVEYCLEAN_YEAR
const EnvPrefix = "SURVEYCLEAN"

// DefaultConfigName is searched for in the working directory when no
// config file is given
const DefaultConfigName = "surveyclean"

// Identity names the identification columns the pipeline reads and writes
type Identity struct {
	Name         string `json:"name" yaml:"name" mapstructure:"name"`
	Type         string `json:"type" yaml:"type" mapstructure:"type"`
	ID           string `json:"id" yaml:"id" mapstructure:"id"`
	Year         string `json:"year" yaml:"year" mapstructure:"year"`
	Responsible  string `json:"responsible" yaml:"responsible" mapstructure:"responsible"`
	Completeness string `json:"completeness" yaml:"completeness" mapstructure:"completeness"`
	Duration     string `json:"duration" yaml:"duration" mapstructure:"duration"`
	Submitted    string `json:"submitted" yaml:"submitted" mapstructure:"submitted"`
	End          string `json:"end" yaml:"end" mapstructure:"end"`
	// DefaultType fills the type column when the survey has none
	DefaultType string `json:"default_type" yaml:"default_type" mapstructure:"default_type"`
}

// References are the newline-delimited geographic lists
type References struct {
	Concelhos  string `json:"concelhos" yaml:"concelhos" mapstructure:"concelhos"`
	Freguesias string `json:"freguesias" yaml:"freguesias" mapstructure:"freguesias"`
}

// Registry configures the canonical entity registry
type Registry struct {
	DSN   string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
	Query string `json:"query" yaml:"query" mapstructure:"query"`
}

// Store configures the mapping store
type Store struct {
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
}

// Server configures the review API
type Server struct {
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// Config is the survey cleaning configuration
type Config struct {
	Year          int                    `json:"year" yaml:"year" mapstructure:"year"`
	Identity      Identity               `json:"identity" yaml:"identity" mapstructure:"identity"`
	Schema        columns.Schema         `json:"schema" yaml:"schema" mapstructure:"schema"`
	Sentinels     []string               `json:"sentinels" yaml:"sentinels" mapstructure:"sentinels"`
	References    References             `json:"references" yaml:"references" mapstructure:"references"`
	Validation    validation.Config      `json:"validation" yaml:"validation" mapstructure:"validation"`
	Prefixes      []string               `json:"prefixes" yaml:"prefixes" mapstructure:"prefixes"`
	Abbreviations []normalize.AbbrevRule `json:"abbreviations" yaml:"abbreviations" mapstructure:"abbreviations"`
	// Groups is used when the mapping store has no definition for Year
	Groups []survey.ColumnGroup `json:"groups,omitempty" yaml:"groups,omitempty" mapstructure:"groups"`
	// EntityTypes maps survey labels to registry labels under the stored mappings
	EntityTypes   map[string]string  `json:"entity_types,omitempty" yaml:"entity_types,omitempty" mapstructure:"entity_types"`
	Transforms    []derive.Transform `json:"transforms" yaml:"transforms" mapstructure:"transforms"`
	Derived       []derive.Spec      `json:"derived" yaml:"derived" mapstructure:"derived"`
	PruneEmpty    bool               `json:"prune_empty" yaml:"prune_empty" mapstructure:"prune_empty"`
	HelperColumns []string           `json:"helper_columns" yaml:"helper_columns" mapstructure:"helper_columns"`
	TimeLayouts   []string           `json:"time_layouts" yaml:"time_layouts" mapstructure:"time_layouts"`
	Registry      Registry           `json:"registry" yaml:"registry" mapstructure:"registry"`
	Store         Store              `json:"store" yaml:"store" mapstructure:"store"`
	Server        Server             `json:"server" yaml:"server" mapstructure:"server"`
	Logging       logging.Config     `json:"logging" yaml:"logging" mapstructure:"logging"`
}

// DefaultIdentity returns the column names of the annual survey
func DefaultIdentity() Identity {
	return Identity{
		Name:         "nome_entidade",
		Type:         "tipo_entidade",
		ID:           "id_entidade",
		Year:         "ano",
		Responsible:  "nome_responsavel",
		Completeness: "percentagem_preenchido",
		Duration:     "tempo_realizacao",
		Submitted:    "data_submissao",
		End:          "data_fim",
		DefaultType:  "Municípios",
	}
}

// DefaultSchema returns the identification columns of the annual survey
func DefaultSchema() columns.Schema {
	return columns.Schema{
		DefaultThreshold: columns.DefaultThreshold,
		Columns: []columns.ColumnSpec{
			{
				Name:     "nome_entidade",
				Aliases:  []string{"nome da entidade", "designacao da entidade", "nome do municipio"},
				Critical: true,
				Implies:  &columns.Implied{Column: "tipo_entidade", Value: "Municípios"},
			},
			{Name: "tipo_entidade", Aliases: []string{"tipo de entidade"}, Default: "Municípios"},
			{Name: "data_inicio", Aliases: []string{"data de inicio", "hora de inicio"}},
			{Name: "data_fim", Aliases: []string{"data de fim", "data de conclusao", "hora de conclusao"}},
			{Name: "data_submissao", Aliases: []string{"data de submissao"}},
			{Name: "percentagem_preenchido", Aliases: []string{"percentagem de preenchimento", "preenchido"}},
			{Name: "existe_responsavel", Aliases: []string{"existe responsavel"}},
			{Name: "nome_responsavel", Aliases: []string{"nome do responsavel"}},
		},
	}
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Identity:      DefaultIdentity(),
		Schema:        DefaultSchema(),
		Sentinels:     append([]string(nil), normalize.DefaultSentinels...),
		Validation:    validation.DefaultConfig(),
		Prefixes:      append([]string(nil), normalize.DefaultPrefixes...),
		Abbreviations: append([]normalize.AbbrevRule(nil), normalize.DefaultAbbrevRules...),
		Transforms:    derive.DefaultTransforms(),
		Derived:       derive.DefaultSpecs(),
		PruneEmpty:    true,
		HelperColumns: []string{"nome_entidade_norm", "entity_key", "data_inicio", "data_fim"},
		TimeLayouts:   append([]string(nil), survey.DefaultTimeLayouts...),
		Registry:      Registry{Query: "SELECT id_entidades AS id, ent_nome AS name, ent_tipo AS type FROM entidades"},
		Server:        Server{Addr: ":8080"},
		Logging:       logging.DefaultConfig(),
	}
}

// Load reads the YAML config at path over the defaults. An empty path
// looks for surveyclean.yaml in the working directory and is not an error
// when none exists. .env files are loaded first so DSNs can live there.
func Load(path string) (*Config, error) {
	if err := LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"year", "registry.dsn", "store.dsn", "server.addr", "logging.level", "logging.format", "logging.output", "references.concelhos", "references.freguesias"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(DefaultConfigName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) { dc.ZeroFields = true }); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Registry.DSN == "" {
		cfg.Registry.DSN = GetEnv("DATABASE_URL", "")
	}
	if cfg.Store.DSN == "" {
		cfg.Store.DSN = cfg.Registry.DSN
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects malformed schema, groups and derived columns
func (c *Config) Validate() error {
	if c.Year < 0 {
		return &survey.ConfigurationError{Field: "year", Reason: "must not be negative"}
	}
	if strings.TrimSpace(c.Identity.Name) == "" {
		return &survey.ConfigurationError{Field: "identity.name", Reason: "entity name column is required"}
	}
	if err := c.Schema.Validate(); err != nil {
		return err
	}
	if _, ok := c.Schema.Spec(c.Identity.Name); !ok {
		return &survey.ConfigurationError{Field: "schema.columns", Reason: fmt.Sprintf("entity name column %q is not in the schema", c.Identity.Name)}
	}
	if t := c.Validation.Threshold; t < 0 || t > 100 {
		return &survey.ConfigurationError{Field: "validation.threshold", Reason: "must be between 0 and 100"}
	}
	if c.Validation.MinLength < validation.MinNameLength {
		return &survey.ConfigurationError{Field: "validation.min_length", Reason: fmt.Sprintf("must be at least %d", validation.MinNameLength)}
	}
	if len(c.Groups) > 0 {
		if err := survey.ValidateGroups(c.Groups, 0); err != nil {
			return err
		}
	}
	for _, spec := range c.Derived {
		if err := spec.Validate(); err != nil {
			return err
		}
	}
	if _, err := normalize.CompilePrefixes(c.Prefixes); err != nil {
		return &survey.ConfigurationError{Field: "prefixes", Reason: err.Error()}
	}
	if _, err := normalize.NewAbbrevRules(c.Abbreviations); err != nil {
		return &survey.ConfigurationError{Field: "abbreviations", Reason: err.Error()}
	}
	return nil
}

// NullSentinels returns the compiled null sentinel set
func (c *Config) NullSentinels() normalize.Sentinels {
	return normalize.NewSentinels(c.Sentinels)
}

// YAML renders the effective configuration
func (c *Config) YAML() ([]byte, error) {
	out, err := yaml.MarshalWithOptions(c, yaml.Indent(2), yaml.IndentSequence(true))
	if err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return out, nil
}
