// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"

	"github.com/henrysouchien/portfolio-risk-engine/cmd"
	"github.com/henrysouchien/portfolio-risk-engine/common"
	"github.com/henrysouchien/portfolio-risk-engine/observability/opentelemetry"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func configureViper() {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath("/etc/riskengine/")
	viper.AddConfigPath("$HOME/.config/riskengine")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		// a config file is optional; env vars and flags can carry everything
		log.Debug().Err(err).Msg("no config file loaded")
	}
}

func main() {
	configureViper()
	common.SetupLogging()

	if viper.GetString("otlp.endpoint") != "" {
		shutdown, err := opentelemetry.Setup()
		if err != nil {
			log.Warn().Err(err).Msg("could not setup opentelemetry tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Warn().Err(err).Msg("could not shutdown opentelemetry tracing")
				}
			}()
		}
	}

	cmd.Execute()
}
