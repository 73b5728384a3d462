package config

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/chrissnell/ustarthreshold/internal/constants"
	"github.com/chrissnell/ustarthreshold/internal/ustar"
)

// Defaults for settings that are not part of the core parameter set.
const (
	DefaultNBoot    = 100
	DefaultSentinel = constants.MissingValue
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Use YAML key names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ApplyDefaults fills unset analysis parameters with the standard values and
// unset site sentinels with -9999.
func (c *ConfigData) ApplyDefaults() {
	def := ustar.DefaultConfig()
	a := &c.Analysis
	setInt := func(p *int, v int) {
		if *p == 0 {
			*p = v
		}
	}
	setInt(&a.NSeasons, def.NSeasons)
	setInt(&a.NStrataMin, def.NStrataMin)
	setInt(&a.NStrataMax, def.NStrataMax)
	setInt(&a.NBins, def.NBins)
	setInt(&a.NPerBin, def.NPerBin)
	setInt(&a.NPerBinHourly, def.NPerBinHourly)
	setInt(&a.NBoot, DefaultNBoot)
	if a.PSignificant == 0 {
		a.PSignificant = def.PSignificant
	}
	if a.Seed == 0 {
		a.Seed = def.Seed
	}
	if a.UStarMax == 0 {
		a.UStarMin, a.UStarMax = def.UStarMin, def.UStarMax
	}
	for i := range c.Sites {
		if c.Sites[i].Sentinel == 0 {
			c.Sites[i].Sentinel = DefaultSentinel
		}
	}
}

// Validate checks the configuration against its field constraints and
// reports every violation at once.
func (c *ConfigData) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "ConfigData.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "gtefield", "gtfield":
		return fmt.Sprintf("%s must be %s %s", field, map[string]string{"gtefield": ">=", "gtfield": ">"}[fe.Tag()], fe.Param())
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
}

// ToUStar converts the analysis section into the core parameter set. A zero
// worker count uses every CPU.
func (a AnalysisData) ToUStar() ustar.Config {
	workers := a.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return ustar.Config{
		NSeasons:      a.NSeasons,
		NStrataMin:    a.NStrataMin,
		NStrataMax:    a.NStrataMax,
		NBins:         a.NBins,
		NPerBin:       a.NPerBin,
		NPerBinHourly: a.NPerBinHourly,
		PSignificant:  a.PSignificant,
		UStarMin:      a.UStarMin,
		UStarMax:      a.UStarMax,
		Seed:          a.Seed,
		Workers:       workers,
	}
}

// Load reads the configuration from p, applies defaults and validates it.
func Load(p ConfigProvider) (*ConfigData, error) {
	cfg, err := p.LoadConfig()
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
