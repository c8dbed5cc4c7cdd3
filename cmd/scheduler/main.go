// Command scheduler runs the cooperative round-robin process scheduler,
// reading submitted pids from a pipe and writing results to another:
// scheduler NCPU TSLICE_MS submit_read_fd result_write_fd.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sifat29/smartos/internal/logging"
	"github.com/sifat29/smartos/internal/scheduler"
)

func main() {
	os.Exit(run(os.Args))
}

func run(argv []string) int {
	if len(argv) != 5 {
		fmt.Fprintf(os.Stderr, "usage: %s NCPU TSLICE_MS submit_read_fd result_write_fd\n", argv[0])
		return 2
	}

	ncpu, err1 := strconv.Atoi(argv[1])
	tsliceMS, err2 := strconv.Atoi(argv[2])
	submitFD, err3 := strconv.Atoi(argv[3])
	resultFD, err4 := strconv.Atoi(argv[4])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || ncpu <= 0 || tsliceMS <= 0 {
		fmt.Fprintln(os.Stderr, "invalid scheduler arguments")
		return 2
	}

	submitR := os.NewFile(uintptr(submitFD), "submit")
	resultW := os.NewFile(uintptr(resultFD), "result")
	if submitR == nil || resultW == nil {
		fmt.Fprintln(os.Stderr, "invalid pipe file descriptors")
		return 2
	}
	defer submitR.Close()
	defer resultW.Close()

	signal.Ignore(syscall.SIGPIPE)

	log := logging.New("info")

	s := scheduler.New(scheduler.Config{
		NCPU:   ncpu,
		Tslice: time.Duration(tsliceMS) * time.Millisecond,
	}, submitR, resultW, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sig
		s.RequestShutdown()
	}()

	if _, err := s.Run(); err != nil {
		log.WithError(err).Error("scheduler run failed")
		return 2
	}
	return 0
}
