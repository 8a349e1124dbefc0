package main

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlag lets an explicitly set flag override the environment. Unset flags
// keep the env or default value.
func bindFlag(v *viper.Viper, key string, f *pflag.Flag) {
	if f == nil {
		return
	}
	_ = v.BindPFlag(key, f)
}
