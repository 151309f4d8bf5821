// Package config loads go-onion node settings with viper.
//
// Settings come from a YAML file, $HOME/.go-onion/config.yaml unless the
// --config flag names another one. A missing default file is created with the
// values from Defaults(). CurrentConfig() reads the merged result and
// Validate() checks it before any node starts.
package config
