package catalog

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Resource categories tracked in the supply/demand table.
const (
	ResJobs       = "jobs"
	ResEnergy     = "energy"
	ResEducation  = "education"
	ResFood       = "food"
	ResHousing    = "housing"
	ResHealthcare = "healthcare"
)

// Resources lists every supply/demand category in a fixed order.
var Resources = []string{ResJobs, ResEnergy, ResEducation, ResFood, ResHousing, ResHealthcare}

// Accessibility domains scored per parcel.
const (
	DomFood       = "food"
	DomEnergy     = "energy"
	DomJobs       = "jobs"
	DomHealthcare = "healthcare"
	DomEducation  = "education"
	DomTransport  = "transport"
	DomCulture    = "culture"
	DomSafety     = "safety"
)

// Domains lists every accessibility domain in a fixed order.
var Domains = []string{DomFood, DomEnergy, DomJobs, DomHealthcare, DomEducation, DomTransport, DomCulture, DomSafety}

// Building categories.
const (
	CatResidential    = "residential"
	CatCommercial     = "commercial"
	CatAgriculture    = "agriculture"
	CatInfrastructure = "infrastructure"
	CatHealthcare     = "healthcare"
	CatEducation      = "education"
	CatCulture        = "culture"
	CatSafety         = "safety"
	CatRecreation     = "recreation"
)

// BuildingDef is one immutable catalog entry. Absent numeric fields decode to
// zero, so computation code never needs nil-guards or defaults.
type BuildingDef struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`

	Economics  Economics    `json:"economics"`
	Resources  ResourceRate `json:"resources"`
	Livability Livability   `json:"livability"`
}

type Economics struct {
	BuildCost       float64 `json:"build_cost"`
	MaxRevenue      float64 `json:"max_revenue"`
	MaintenanceBase float64 `json:"maintenance_base"`
	// DecayRatePctPerDay is the per-day condition loss in percent (0.12 = 0.12%/day).
	DecayRatePctPerDay float64 `json:"decay_rate_pct_per_day"`
	BuildDays          int     `json:"build_days"`
}

// ResourceRate holds per-category provided/required rates.
type ResourceRate struct {
	JobsProvided       float64 `json:"jobs_provided"`
	EnergyProvided     float64 `json:"energy_provided"`
	EducationProvided  float64 `json:"education_provided"`
	FoodProvided       float64 `json:"food_provided"`
	HousingProvided    float64 `json:"housing_provided"`
	HealthcareProvided float64 `json:"healthcare_provided"`

	EnergyRequired float64 `json:"energy_required"`
}

// Livability is the six-domain soft quality-of-life impact vector, plus the
// mobility impact feeding the transport accessibility domain.
type Livability struct {
	Culture       float64 `json:"culture"`
	Affordability float64 `json:"affordability"`
	Resilience    float64 `json:"resilience"`
	Environment   float64 `json:"environment"`
	Noise         float64 `json:"noise"`
	Safety        float64 `json:"safety"`
	Mobility      float64 `json:"mobility"`
}

// Provided returns the supply rate for a resource category.
func (r ResourceRate) Provided(res string) float64 {
	switch res {
	case ResJobs:
		return r.JobsProvided
	case ResEnergy:
		return r.EnergyProvided
	case ResEducation:
		return r.EducationProvided
	case ResFood:
		return r.FoodProvided
	case ResHousing:
		return r.HousingProvided
	case ResHealthcare:
		return r.HealthcareProvided
	}
	return 0
}

// Catalog is the immutable building-type lookup, loaded once per process and
// safe for unsynchronized concurrent reads.
type Catalog struct {
	Defs   map[string]BuildingDef
	IDs    []string
	Digest string
}

func (c *Catalog) Get(id string) (BuildingDef, bool) {
	d, ok := c.Defs[id]
	return d, ok
}

// Load reads and validates buildings.json. The dataset is versioned by its
// sha256 digest, which is advertised to clients at join.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalog, error) {
	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("buildings.json: %w", err)
	}

	var defs []BuildingDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("buildings.json: %w", err)
	}

	c := &Catalog{
		Defs:   make(map[string]BuildingDef, len(defs)),
		Digest: sha256Hex(raw),
	}
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("buildings.json: empty id")
		}
		if _, dup := c.Defs[d.ID]; dup {
			return nil, fmt.Errorf("buildings.json: duplicate id %s", d.ID)
		}
		c.Defs[d.ID] = d
	}

	ids := make([]string, 0, len(c.Defs))
	for id := range c.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	c.IDs = ids
	return c, nil
}

func validateSchema(raw []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("buildings.schema.json", bytes.NewReader([]byte(buildingsSchema))); err != nil {
		return err
	}
	schema, err := compiler.Compile("buildings.schema.json")
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
