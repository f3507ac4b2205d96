// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	"github.com/Thermoquad/signalbox/pkg/z21"
	"github.com/spf13/cobra"
)

var cvTimeout int

var cvCmd = &cobra.Command{
	Use:   "cv",
	Short: "Read and write decoder CVs on the programming track",
	Long: `Read and write configuration variables (CV1-CV1024) in direct mode.

The command station switches to programming mode for the duration of the
operation. A missing acknowledge from the decoder is reported as CV_NACK.

Exit codes:
  0 - CV result received
  1 - NACK or timeout
  2 - Connection error`,
}

var cvReadCmd = &cobra.Command{
	Use:   "read <cv>",
	Short: "Read a CV",
	Args:  cobra.ExactArgs(1),
	RunE:  runCVRead,
}

var cvWriteCmd = &cobra.Command{
	Use:   "write <cv> <value>",
	Short: "Write a CV",
	Args:  cobra.ExactArgs(2),
	RunE:  runCVWrite,
}

func init() {
	rootCmd.AddCommand(cvCmd)
	cvCmd.AddCommand(cvReadCmd, cvWriteCmd)
	cvCmd.PersistentFlags().IntVar(&cvTimeout, "timeout", 10, "Timeout in seconds to wait for the decoder")
}

func runCVRead(cmd *cobra.Command, args []string) error {
	cv, err := parseCV(args[0])
	if err != nil {
		return err
	}
	return runCV(cmd, func(c *z21.Codec) error { return c.CVRead(cv) })
}

func runCVWrite(cmd *cobra.Command, args []string) error {
	cv, err := parseCV(args[0])
	if err != nil {
		return err
	}
	value, err := parseByte(args[1])
	if err != nil {
		return err
	}
	return runCV(cmd, func(c *z21.Codec) error { return c.CVWrite(cv, value) })
}

func runCV(cmd *cobra.Command, send func(c *z21.Codec) error) error {
	timeout := timeoutFor(cmd, cvTimeout)
	return runWithStation(func(ctx context.Context, st *Station) error {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		ev, err := st.Request(ctx, send, eventIs(z21.EventProgrammingCVResult, z21.EventProgrammingCVNack))
		if err != nil {
			return waitFailure("CV result", timeout, err)
		}
		if ev.Kind == z21.EventProgrammingCVNack {
			return failure("CV_NACK: no acknowledge from decoder")
		}

		result := ev.Payload.(z21.CVResult)
		fmt.Printf("CV%d = %d (0x%02X, 0b%08b)\n", result.CV, result.Value, result.Value, result.Value)
		return nil
	})
}
