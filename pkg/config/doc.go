// Package config loads archsetup configuration.
//
// Two kinds of configuration exist. Policy configuration (retry counts,
// backoff, backup retention, file locations) is layered with koanf: embedded
// defaults, then the optional user policy file, then ARCHSETUP_* environment
// variables. Selection files are the declarative answer to the interactive
// questions (CPU, GPU, laptop, steps, storage device) and may be written as
// TOML, YAML or shell style KEY=VALUE.
package config
