package main

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/matryer/is"
	"github.com/spf13/cobra"

	"github.com/chriscow/speech-sdk-go/pkg/recognizer"
)

func quietCommand(run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	cmd := &cobra.Command{Use: "test", RunE: run, SilenceUsage: true, SilenceErrors: true}
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{})
	return cmd
}

func TestRecognitionMode(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want recognizer.Mode
	}{
		{"default", nil, recognizer.ModeSingleShot},
		{"single", []string{"--single"}, recognizer.ModeSingleShot},
		{"continuous", []string{"--continuous", "5s"}, recognizer.ModeContinuous},
		{"keyword", []string{"--keyword", "computer.table"}, recognizer.ModeKeyword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			var got recognizer.Mode
			cmd := quietCommand(func(cmd *cobra.Command, args []string) error {
				got = recognitionMode(cmd)
				return nil
			})
			addRecognizeFlags(cmd)
			cmd.SetArgs(tt.args)

			is.NoErr(cmd.Execute())
			is.Equal(got, tt.want)
		})
	}
}

func TestRecognitionMode_ExclusiveFlags(t *testing.T) {
	is := is.New(t)
	ran := false
	cmd := quietCommand(func(cmd *cobra.Command, args []string) error {
		ran = true
		return nil
	})
	addRecognizeFlags(cmd)
	cmd.SetArgs([]string{"--single", "--continuous", "1s"})

	is.True(cmd.Execute() != nil)
	is.True(!ran)
}

func TestExecute_ExitCodes(t *testing.T) {
	is := is.New(t)
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.DiscardHandler))
	defer slog.SetDefault(prev)

	ok := quietCommand(func(*cobra.Command, []string) error { return nil })
	is.Equal(execute(ok), 0)

	failing := quietCommand(func(*cobra.Command, []string) error { return errors.New("no audio") })
	is.Equal(execute(failing), 1)

	panicking := quietCommand(func(*cobra.Command, []string) error { panic("engine exploded") })
	is.Equal(execute(panicking), 2) // recovered and logged, not crashed
}
