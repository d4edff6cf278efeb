// Copyright (c) 2026 Armature Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config provides easy to use and extensible configuration management.
//
// Configuration is read from one or more [Source]s into a key value store and
// unmarshalled into user defined structs via the "config" struct tag:
//
//	m, err := config.Read(
//	    config.FromYaml(strings.NewReader("http:\n  port: 8080")),
//	    config.FromEnv(),
//	)
//	if err != nil {
//	    return err
//	}
//
//	var cfg struct {
//	    Http struct {
//	        Port uint `config:"port"`
//	    } `config:"http"`
//	}
//	err = m.Unmarshal(&cfg)
//
// Later sources override earlier ones, which makes layering defaults,
// files and environment overrides straightforward.
//
// Within an application, a [Manager] is typically bound as the
// configuration of another binding so components can unmarshal their own
// strongly typed config at resolution time.
package config
