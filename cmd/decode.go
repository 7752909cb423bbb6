// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/rfbridge/pkg/frame"
	"github.com/Thermoquad/rfbridge/pkg/rf24link"
)

var (
	decodeTopic string
	decodeLink  bool
)

var decodeCmd = &cobra.Command{
	Use:   "decode HEX",
	Short: "Decode a captured radio frame or link packet",
	Long: `Decode bytes captured from a log without any hardware.

By default HEX is a radio frame as read from a reading pipe; it is decoded
the way the bridge does it and the resulting topic and payload are printed.
With --link, HEX is a stream of coprocessor link packets instead.

Spaces and colons in HEX are ignored.

Examples:
  rfbridge decode --topic home/sensors/ 5b6b69746368656e5d206f6e
  rfbridge decode --link 7e040082182ff64b227f`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringVarP(&decodeTopic, "topic", "t", "", "Topic of the reading pipe the frame arrived on")
	decodeCmd.Flags().BoolVar(&decodeLink, "link", false, "Decode link packets instead of a radio frame")
}

func parseHex(s string) ([]byte, error) {
	s = strings.NewReplacer(" ", "", ":", "", "\n", "").Replace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return data, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	data, err := parseHex(args[0])
	if err != nil {
		return err
	}
	if decodeLink {
		return decodeLinkPackets(cmd.OutOrStdout(), data)
	}
	return decodeFrame(cmd.OutOrStdout(), data, decodeTopic)
}

// decodeFrame prints how the bridge would handle raw
func decodeFrame(w io.Writer, raw []byte, topic string) error {
	fmt.Fprintf(w, "Frame: %d bytes\n", len(raw))

	msg, err := frame.Decode(raw, topic)
	if err != nil {
		var corrupted *frame.CorruptedError
		if errors.As(err, &corrupted) {
			fmt.Fprintf(w, "  CORRUPTED: invalid UTF-8 at offset %d\n", corrupted.Offset)
			fmt.Fprintf(w, "  Raw: %s\n", hex.EncodeToString(corrupted.Raw))
			return nil
		}
		return err
	}

	if msg.Confirmation {
		fmt.Fprintf(w, "  CONFIRMATION (not published)\n")
		return nil
	}
	fmt.Fprintf(w, "  Topic:   %s\n", msg.Topic)
	fmt.Fprintf(w, "  Payload: %q\n", msg.Payload)
	return nil
}

// decodeLinkPackets prints every link packet found in data
func decodeLinkPackets(w io.Writer, data []byte) error {
	decoder := rf24link.NewDecoder()
	count := 0

	for _, b := range data {
		packet, err := decoder.DecodeByte(b)
		if err != nil {
			fmt.Fprintf(w, "[ERROR] %v\n", err)
			continue
		}
		if packet != nil {
			fmt.Fprintln(w, rf24link.FormatPacket(packet))
			count++
		}
	}

	if count == 0 {
		return fmt.Errorf("no complete link packet in %d bytes", len(data))
	}
	return nil
}
