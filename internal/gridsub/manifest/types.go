// Package manifest loads YAML submission manifests, validates them against
// a schema, and builds the job groups and workflow graph they describe.
package manifest

// Manifest is the top-level submission document.
type Manifest struct {
	Name        string      `yaml:"name"`
	StorePrefix string      `yaml:"store_prefix"`
	DAG         *DAGSpec    `yaml:"dag"`
	Groups      []GroupSpec `yaml:"groups"`
}

// DAGSpec configures the workflow descriptor. Its presence switches the
// manifest from independent group submission to a single workflow.
type DAGSpec struct {
	Filename           string            `yaml:"filename"`
	StatusFile         string            `yaml:"status_file"`
	StatusUpdatePeriod int               `yaml:"status_update_period"`
	DotFile            string            `yaml:"dot_file"`
	OtherArgs          map[string]string `yaml:"other_args"`
}

// GroupSpec describes one job group. The three-state booleans distinguish
// "absent" from "explicitly false", since all three default to on.
type GroupSpec struct {
	Name             string            `yaml:"name"`
	Exe              string            `yaml:"exe"`
	CopyExe          *bool             `yaml:"copy_exe"`
	SetupScript      string            `yaml:"setup_script"`
	Filename         string            `yaml:"filename"`
	OutDir           string            `yaml:"out_dir"`
	ErrDir           string            `yaml:"err_dir"`
	LogDir           string            `yaml:"log_dir"`
	CPUs             int               `yaml:"cpus"`
	Memory           string            `yaml:"memory"`
	Disk             string            `yaml:"disk"`
	Certificate      bool              `yaml:"certificate"`
	TransferInputs   *bool             `yaml:"transfer_inputs"`
	ShareExeSetup    *bool             `yaml:"share_exe_setup"`
	CommonInputFiles []string          `yaml:"common_input_files"`
	StoreDir         string            `yaml:"store_dir"`
	AccountingGroup  string            `yaml:"accounting_group"`
	OtherArgs        map[string]string `yaml:"other_args"`
	Jobs             []JobSpec         `yaml:"jobs"`
}

// JobSpec describes one job within a group.
type JobSpec struct {
	Name        string   `yaml:"name"`
	Args        []string `yaml:"args"`
	InputFiles  []string `yaml:"input_files"`
	OutputFiles []string `yaml:"output_files"`
	Quantity    int      `yaml:"quantity"`
	StagingDir  string   `yaml:"staging_dir"`
	Requires    []string `yaml:"requires"`
	Retry       int      `yaml:"retry"`
}
