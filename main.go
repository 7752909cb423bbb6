// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// rfbridge - nRF24 to MQTT bridge
//
// Bridges nRF24L01 radio pipes driven through a radio coprocessor and the
// topics of an MQTT broker.

package main

import (
	"os"

	"github.com/Thermoquad/rfbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
