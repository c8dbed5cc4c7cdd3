package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sifat29/smartos/internal/logging"
	"github.com/sifat29/smartos/internal/scheduler"
	"github.com/spf13/cobra"
)

func addRunSchedulerCommand(root *cobra.Command) {
	var ncpu int
	var tsliceMS int
	var schedulerBinary string

	cmd := &cobra.Command{
		Use:   "run-scheduler",
		Short: "Spawn the scheduler binary and submit pids from stdin, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := uuid.New()
			log := logging.New(logLevel).WithField("session", sessionID.String())

			submitR, submitW, err := os.Pipe()
			if err != nil {
				return fmt.Errorf("creating submit pipe: %w", err)
			}
			resultR, resultW, err := os.Pipe()
			if err != nil {
				return fmt.Errorf("creating result pipe: %w", err)
			}

			proc := exec.Command(schedulerBinary,
				strconv.Itoa(ncpu), strconv.Itoa(tsliceMS), "3", "4")
			proc.ExtraFiles = []*os.File{submitR, resultW}
			proc.Stderr = cmd.ErrOrStderr()

			if err := proc.Start(); err != nil {
				return fmt.Errorf("starting scheduler: %w", err)
			}
			submitR.Close()
			resultW.Close()

			log.Info("scheduler started, enter pids one per line (Ctrl-D to finish submitting)")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				pid, err := strconv.Atoi(line)
				if err != nil {
					log.WithField("input", line).Warn("not a pid, skipping")
					continue
				}
				if err := scheduler.WriteSubmitFrame(submitW, int32(pid)); err != nil {
					log.WithError(err).Warn("failed writing submit frame")
				}
			}
			submitW.Close()

			results := make(chan scheduler.ResultFrame)
			go func() {
				defer close(results)
				for {
					frame, err := scheduler.ReadResultFrame(resultR)
					if err != nil {
						return
					}
					results <- frame
					if frame.IsSentinel() {
						return
					}
				}
			}()

			for frame := range results {
				if frame.IsSentinel() {
					break
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pid=%d run=%d wait=%d completion=%d\n",
					frame.PID, frame.RunSlices, frame.WaitSlices, frame.CompletionSlices)
			}

			return proc.Wait()
		},
	}

	cmd.Flags().IntVar(&ncpu, "ncpu", 1, "Number of virtual cores")
	cmd.Flags().IntVar(&tsliceMS, "tslice", 100, "Tick length in milliseconds")
	cmd.Flags().StringVar(&schedulerBinary, "scheduler-binary", "scheduler", "Path to the scheduler binary")

	root.AddCommand(cmd)
}
