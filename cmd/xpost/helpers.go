package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joss/xpost/internal/orchestrator"
	"github.com/joss/xpost/internal/render"
)

func renderer() *render.Renderer {
	return render.New(pretty)
}

// errReported is returned once a failure has already been shown to the user.
var errReported = errors.New("reported")

// exitCode prints err unless it was already reported and returns the
// process exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if !errors.Is(err, errReported) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return 1
}

// finish prints st and returns errReported on an error status.
func finish(st orchestrator.Status) error {
	if jsonOut {
		printJSON(map[string]any{"kind": st.Kind, "message": st.Message})
	} else if st.Kind == orchestrator.StatusError {
		fmt.Fprint(os.Stderr, renderer().Status(st))
	} else {
		fmt.Print(renderer().Status(st))
	}
	if !st.OK() {
		return errReported
	}
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// argsOrStdin joins args, or reads stdin when args is ["-"].
func argsOrStdin(args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.Join(args, " "), nil
}
