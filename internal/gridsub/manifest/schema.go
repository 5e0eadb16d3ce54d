package manifest

import "github.com/santhosh-tekuri/jsonschema/v5"

// manifestSchema is the structural contract for submission manifests.
// Semantic rules that need cross-field context, like dependency names
// resolving to real jobs, are enforced by the builder instead.
const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "groups"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "store_prefix": {"type": "string"},
    "dag": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "filename": {"type": "string", "minLength": 1},
        "status_file": {"type": "string"},
        "status_update_period": {"type": "integer", "minimum": 1},
        "dot_file": {"type": "string"},
        "other_args": {
          "type": "object",
          "additionalProperties": {"type": "string"}
        }
      }
    },
    "groups": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "exe", "store_dir", "jobs"],
        "additionalProperties": false,
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "exe": {"type": "string", "minLength": 1},
          "copy_exe": {"type": "boolean"},
          "setup_script": {"type": "string"},
          "filename": {"type": "string"},
          "out_dir": {"type": "string"},
          "err_dir": {"type": "string"},
          "log_dir": {"type": "string"},
          "cpus": {"type": "integer", "minimum": 1},
          "memory": {"type": "string"},
          "disk": {"type": "string"},
          "certificate": {"type": "boolean"},
          "transfer_inputs": {"type": "boolean"},
          "share_exe_setup": {"type": "boolean"},
          "common_input_files": {
            "type": "array",
            "items": {"type": "string", "minLength": 1}
          },
          "store_dir": {"type": "string", "minLength": 1},
          "accounting_group": {"type": "string"},
          "other_args": {
            "type": "object",
            "additionalProperties": {"type": "string"}
          },
          "jobs": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["name"],
              "additionalProperties": false,
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "args": {"type": "array", "items": {"type": "string"}},
                "input_files": {"type": "array", "items": {"type": "string", "minLength": 1}},
                "output_files": {"type": "array", "items": {"type": "string", "minLength": 1}},
                "quantity": {"type": "integer", "minimum": 1},
                "staging_dir": {"type": "string"},
                "requires": {"type": "array", "items": {"type": "string", "minLength": 1}},
                "retry": {"type": "integer", "minimum": 0}
              }
            }
          }
        }
      }
    }
  }
}`

func compileSchema() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("manifest.schema.json", manifestSchema)
}
