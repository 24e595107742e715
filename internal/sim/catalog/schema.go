package catalog

// JSON Schema for buildings.json. Numeric fields are optional and default to
// zero at decode time; ids and categories are required so a malformed dataset
// fails at load rather than mid-simulation.
const buildingsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "category", "economics"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "name": {"type": "string"},
      "category": {
        "enum": [
          "residential", "commercial", "agriculture", "infrastructure",
          "healthcare", "education", "culture", "safety", "recreation"
        ]
      },
      "economics": {
        "type": "object",
        "required": ["build_cost"],
        "properties": {
          "build_cost": {"type": "number", "minimum": 0},
          "max_revenue": {"type": "number", "minimum": 0},
          "maintenance_base": {"type": "number", "minimum": 0},
          "decay_rate_pct_per_day": {"type": "number", "minimum": 0},
          "build_days": {"type": "integer", "minimum": 0}
        },
        "additionalProperties": false
      },
      "resources": {
        "type": "object",
        "properties": {
          "jobs_provided": {"type": "number", "minimum": 0},
          "energy_provided": {"type": "number", "minimum": 0},
          "education_provided": {"type": "number", "minimum": 0},
          "food_provided": {"type": "number", "minimum": 0},
          "housing_provided": {"type": "number", "minimum": 0},
          "healthcare_provided": {"type": "number", "minimum": 0},
          "energy_required": {"type": "number", "minimum": 0}
        },
        "additionalProperties": false
      },
      "livability": {
        "type": "object",
        "properties": {
          "culture": {"type": "number"},
          "affordability": {"type": "number"},
          "resilience": {"type": "number"},
          "environment": {"type": "number"},
          "noise": {"type": "number"},
          "safety": {"type": "number"},
          "mobility": {"type": "number"}
        },
        "additionalProperties": false
      }
    },
    "additionalProperties": false
  }
}`
