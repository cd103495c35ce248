package inventory

// Record is one running instance as reported by the datacenter's
// compute and instance catalogs.
type Record struct {
	// Instance is the provisioning backend's instance identifier.
	Instance string `yaml:"instance" json:"instance" validate:"required"`

	// Node is the compute node the instance runs on.
	Node string `yaml:"node" json:"node" validate:"required"`

	// Service is the service the instance belongs to.
	Service string `yaml:"service" json:"service" validate:"required"`

	// Shard is the shard identifier, set only for sharded services.
	Shard string `yaml:"shard,omitempty" json:"shard,omitempty"`

	// Image is the image the instance currently runs.
	Image string `yaml:"image" json:"image" validate:"required"`
}

// File is the on-disk inventory document.
type File struct {
	Instances []Record `yaml:"instances" validate:"dive"`
}
