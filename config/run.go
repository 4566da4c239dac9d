package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"house-finder/models"
)

// Run configuration validation errors.
var (
	ErrMissingRunFile    = errors.New("run config file is required")
	ErrMissingArea       = errors.New("search.area is required")
	ErrInvalidBedrooms   = errors.New("search.bedrooms must be [min, max]")
	ErrInvalidPrice      = errors.New("search.price must be [min, max]")
	ErrNoObjectives      = errors.New("at least one objective is required")
	ErrMissingObjName    = errors.New("objective name is required")
	ErrDuplicateObjName  = errors.New("objective names must be unique")
	ErrInvalidTarget     = errors.New("target must be [lat, lng]")
	ErrMissingObjectKind = errors.New("objective kind is required")
)

// RunConfig is the user's search plus the objectives to score it with.
type RunConfig struct {
	Search     models.Query
	Objectives []models.ObjectiveSpec
}

type searchDoc struct {
	Area     string `koanf:"area"`
	Type     string `koanf:"type"`
	Bedrooms []int  `koanf:"bedrooms"`
	Price    []int  `koanf:"price"`
	// Budget is the older single maximum price field.
	Budget int `koanf:"budget"`
}

type objectiveDoc struct {
	Name          string    `koanf:"name"`
	Kind          string    `koanf:"kind"`
	Weight        *float64  `koanf:"weight"`
	IsConstraint  bool      `koanf:"is_constraint"`
	Threshold     *float64  `koanf:"threshold"`
	Destination   string    `koanf:"destination"`
	Mode          string    `koanf:"mode"`
	ArrivalTime   string    `koanf:"arrival_time"`
	DepartureTime string    `koanf:"departure_time"`
	TargetPrice   *int      `koanf:"target_price"`
	Target        []float64 `koanf:"target"`
	TargetAddress string    `koanf:"target_address"`
	PlaceType     string    `koanf:"place_type"`
}

type runDoc struct {
	Search     searchDoc      `koanf:"search"`
	Objectives []objectiveDoc `koanf:"objectives"`
}

// LoadRun parses the YAML run file at path. All validation problems are
// reported together. Objective kinds are checked later, when objectives
// are built.
func LoadRun(path string) (*RunConfig, error) {
	if path == "" {
		return nil, ErrMissingRunFile
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: load run file %s: %w", path, err)
	}

	var doc runDoc
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("config: decode run file %s: %w", path, err)
	}

	cfg, errs := doc.toRunConfig()
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: invalid run file %s: %w", path, errors.Join(errs...))
	}
	return cfg, nil
}

func (d runDoc) toRunConfig() (*RunConfig, []error) {
	var errs []error

	q := models.Query{
		Area: strings.TrimSpace(d.Search.Area),
		Type: strings.ToLower(strings.TrimSpace(d.Search.Type)),
	}
	if q.Area == "" {
		errs = append(errs, ErrMissingArea)
	}
	if q.Type == "" {
		q.Type = "rent"
	}
	switch len(d.Search.Bedrooms) {
	case 0:
	case 2:
		q.MinBedrooms, q.MaxBedrooms = d.Search.Bedrooms[0], d.Search.Bedrooms[1]
		if q.MinBedrooms > q.MaxBedrooms {
			errs = append(errs, ErrInvalidBedrooms)
		}
	default:
		errs = append(errs, ErrInvalidBedrooms)
	}
	switch len(d.Search.Price) {
	case 0:
		q.MaxPrice = d.Search.Budget
	case 2:
		q.MinPrice, q.MaxPrice = d.Search.Price[0], d.Search.Price[1]
		if q.MinPrice > q.MaxPrice {
			errs = append(errs, ErrInvalidPrice)
		}
	default:
		errs = append(errs, ErrInvalidPrice)
	}

	if len(d.Objectives) == 0 {
		errs = append(errs, ErrNoObjectives)
	}

	seen := make(map[string]struct{}, len(d.Objectives))
	specs := make([]models.ObjectiveSpec, 0, len(d.Objectives))
	for i, o := range d.Objectives {
		spec, err := o.toSpec()
		if err != nil {
			errs = append(errs, fmt.Errorf("objectives[%d]: %w", i, err))
			continue
		}
		if _, dup := seen[spec.Name]; dup {
			errs = append(errs, fmt.Errorf("objectives[%d] %q: %w", i, spec.Name, ErrDuplicateObjName))
			continue
		}
		seen[spec.Name] = struct{}{}
		specs = append(specs, spec)
	}

	return &RunConfig{Search: q, Objectives: specs}, errs
}

func (o objectiveDoc) toSpec() (models.ObjectiveSpec, error) {
	spec := models.ObjectiveSpec{
		Name:          strings.TrimSpace(o.Name),
		Kind:          models.ObjectiveKind(strings.ToLower(strings.TrimSpace(o.Kind))),
		Weight:        1,
		IsConstraint:  o.IsConstraint,
		Threshold:     o.Threshold,
		Destination:   strings.TrimSpace(o.Destination),
		Mode:          strings.ToLower(strings.TrimSpace(o.Mode)),
		ArrivalTime:   strings.TrimSpace(o.ArrivalTime),
		DepartureTime: strings.TrimSpace(o.DepartureTime),
		TargetPrice:   o.TargetPrice,
		TargetAddress: strings.TrimSpace(o.TargetAddress),
		PlaceType:     strings.TrimSpace(o.PlaceType),
	}
	if o.Weight != nil {
		spec.Weight = *o.Weight
	}
	if spec.Name == "" {
		return spec, ErrMissingObjName
	}
	if spec.Kind == "" {
		return spec, fmt.Errorf("%q: %w", spec.Name, ErrMissingObjectKind)
	}
	switch len(o.Target) {
	case 0:
	case 2:
		spec.Target = &models.LatLng{Lat: o.Target[0], Lng: o.Target[1]}
	default:
		return spec, fmt.Errorf("%q: %w", spec.Name, ErrInvalidTarget)
	}
	return spec, nil
}
