package report

// Schema is the JSON Schema (Draft 2020-12) for the classify and fuzz
// JSON output. It documents the structure returned by WriteJSON.
const Schema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/assay/assertion-report.schema.json",
  "title": "Assay Assertion Report",
  "description": "Output schema for assay classify --format=json and assay fuzz --format=json",
  "type": "object",
  "required": ["version", "metadata", "summary", "classes"],
  "properties": {
    "version": {
      "type": "string",
      "description": "Schema version (semver)"
    },
    "metadata": { "$ref": "#/$defs/Metadata" },
    "summary": {
      "type": "object",
      "description": "Assertion count per classification",
      "propertyNames": { "$ref": "#/$defs/Classification" },
      "additionalProperties": { "type": "integer", "minimum": 0 }
    },
    "classes": {
      "type": "array",
      "items": { "$ref": "#/$defs/ClassResult" }
    }
  },
  "$defs": {
    "Classification": {
      "type": "string",
      "enum": [
        "tautology", "contingent", "contradiction", "side_effect",
        "useful", "useless", "unclassified"
      ]
    },
    "ClassResult": {
      "type": "object",
      "required": ["class", "assertions_per_method", "methods"],
      "properties": {
        "class": {
          "type": "string",
          "description": "Fully qualified class name"
        },
        "assertions_per_method": {
          "type": "number",
          "minimum": 0
        },
        "methods": {
          "type": "array",
          "items": { "$ref": "#/$defs/MethodResult" }
        }
      }
    },
    "MethodResult": {
      "type": "object",
      "required": ["target", "assertions", "faults"],
      "properties": {
        "target": { "$ref": "#/$defs/MethodTarget" },
        "assertions": {
          "type": "array",
          "items": { "$ref": "#/$defs/Assertion" }
        },
        "faults": {
          "type": "array",
          "items": { "$ref": "#/$defs/Fault" }
        }
      }
    },
    "MethodTarget": {
      "type": "object",
      "required": ["class", "method", "id", "parameters"],
      "properties": {
        "class": { "type": "string" },
        "method": { "type": "string" },
        "id": {
          "type": "string",
          "description": "Method id with descriptor, e.g. jpamb.cases.Simple.div:(II)I"
        },
        "parameters": {
          "type": "array",
          "items": { "type": "string" }
        },
        "location": {
          "type": "string",
          "description": "Source file of the declaring class"
        }
      }
    },
    "Assertion": {
      "type": "object",
      "required": ["id", "span", "expression", "classification"],
      "properties": {
        "id": {
          "type": "string",
          "pattern": "^as-[0-9a-f]{8}$",
          "description": "Stable identifier (as-XXXXXXXX)"
        },
        "span": { "$ref": "#/$defs/Span" },
        "expression": { "type": "string" },
        "classification": { "$ref": "#/$defs/Classification" },
        "reason": { "type": "string" }
      }
    },
    "Span": {
      "type": "object",
      "required": ["start_line", "start_column", "end_line", "end_column"],
      "properties": {
        "start_line": { "type": "integer", "minimum": 0 },
        "start_column": { "type": "integer", "minimum": 0 },
        "end_line": { "type": "integer", "minimum": 0 },
        "end_column": { "type": "integer", "minimum": 0 }
      }
    },
    "Fault": {
      "type": "object",
      "required": ["message", "depth", "input", "wrong_inputs"],
      "properties": {
        "message": {
          "type": "string",
          "description": "Oracle fault kind, e.g. divide by zero"
        },
        "depth": { "type": "integer", "minimum": 0 },
        "input": {
          "type": "string",
          "description": "Formatted argument tuple"
        },
        "wrong_inputs": {
          "type": "array",
          "items": { "$ref": "#/$defs/WrongInput" }
        },
        "suggestion": { "type": "string" }
      }
    },
    "WrongInput": {
      "type": "object",
      "required": ["name", "value", "faulty", "is_obj"],
      "properties": {
        "name": { "type": "string" },
        "value": { "type": "string" },
        "faulty": {
          "type": "boolean",
          "description": "Changing only this argument makes the method complete normally"
        },
        "is_obj": { "type": "boolean" }
      }
    },
    "Metadata": {
      "type": "object",
      "required": ["assay_version", "duration_ms", "warnings"],
      "properties": {
        "assay_version": { "type": "string" },
        "duration_ms": {
          "type": "integer",
          "description": "Run duration in milliseconds"
        },
        "timestamp": {
          "type": "string",
          "format": "date-time"
        },
        "warnings": {
          "type": "array",
          "items": { "type": "string" }
        }
      }
    }
  }
}`

// ExploreSchema is the JSON Schema for assay explore --format=json.
const ExploreSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://github.com/unbound-force/assay/explore-report.schema.json",
  "title": "Assay Exploration Report",
  "type": "object",
  "required": ["version", "metadata", "methods"],
  "properties": {
    "version": { "type": "string" },
    "metadata": {
      "type": "object",
      "required": ["assay_version", "duration_ms", "warnings"]
    },
    "methods": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["method", "branches", "coverage", "steps", "truncated"],
        "properties": {
          "method": { "type": "string" },
          "branches": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["constraints", "sat"],
              "properties": {
                "constraints": { "type": "string" },
                "sat": { "type": "boolean" }
              }
            }
          },
          "coverage": {
            "type": "array",
            "items": { "type": "integer", "minimum": 0 }
          },
          "steps": { "type": "integer", "minimum": 0 },
          "truncated": { "type": "boolean" },
          "interesting": { "type": "string" }
        }
      }
    }
  }
}`
