// Copyright (c) Pypperoni
//
// Pypperoni is licensed under the MIT License; you may
// not use it except in compliance with the License.

// Command pypperonic drives one end-to-end build: load a program's Python
// sources into a module graph, lower every reachable module to C, and emit
// a CMakeLists.txt that links the result against the host Python runtime
// (spec §6). Ground: risor's cmd/risor/root.go — a cobra root command with
// persistent build-configuration flags, plus one debug subcommand.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pypperoni/pypperoni"
)

var (
	flagOut            string
	flagProject        string
	flagMain           string
	flagWorkers        int
	flagMaxFileSize    int
	flagExtraStack     int
	flagSplitInterval  int
	flagPython         string
	flagCompileTimeout time.Duration
	flagStdlib         string
	flagVerbose        bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pypperonic SOURCE [SOURCE...]",
		Short: "Transpile Python programs to C via Pypperoni",
	}

	root.PersistentFlags().StringVarP(&flagOut, "out", "o", "build", "output directory")
	root.PersistentFlags().StringVar(&flagProject, "project", "app", "CMake project name")
	root.PersistentFlags().StringVar(&flagMain, "main", "", "dotted name of the entry-point module (defaults to the first source's derived name)")
	root.PersistentFlags().IntVar(&flagWorkers, "workers", pypperoni.DefaultWorkerCount, "number of concurrent lowering workers")
	root.PersistentFlags().IntVar(&flagMaxFileSize, "max-file-size", pypperoni.DefaultMaxFileSize, "maximum bytes per generated .c file before rollover")
	root.PersistentFlags().IntVar(&flagExtraStack, "extra-stack", pypperoni.DefaultExtraStackSize, "extra value-stack slots reserved per frame")
	root.PersistentFlags().IntVar(&flagSplitInterval, "split-interval", pypperoni.DefaultSplitInterval, "instructions per chunk before the Chunker splits a function")
	root.PersistentFlags().StringVar(&flagPython, "python", "", "python3 executable used to compile sources (defaults to \"python3\")")
	root.PersistentFlags().DurationVar(&flagCompileTimeout, "compile-timeout", 30*time.Second, "timeout for one source-to-bytecode compile call")
	root.PersistentFlags().StringVar(&flagStdlib, "stdlib", "", "directory of .py files added non-recursively as top-level modules (spec §4.1 AddDirectory)")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug-level logging")

	root.AddCommand(newBuildCmd())
	root.AddCommand(newGraphCmd())
	return root
}

func newLogger() *logrus.Logger {
	log := logrus.New()
	if flagVerbose {
		log.SetLevel(logrus.DebugLevel)
	}
	// Plain output when stdout isn't a terminal (CI logs, redirected files)
	// so progress lines stay greppable instead of carrying escape codes.
	log.SetFormatter(&logrus.TextFormatter{
		DisableColors: !term.IsTerminal(int(os.Stdout.Fd())),
		FullTimestamp: true,
	})
	return log
}

func buildGraph(sources []string) (*pypperoni.Graph, error) {
	return buildGraphWithCompiler(sources, &pypperoni.HostPyCompiler{
		PythonPath: flagPython,
		Timeout:    flagCompileTimeout,
	})
}

// buildGraphWithCompiler is buildGraph with the PyCompiler collaborator
// injected, so callers (tests included) can swap in a stub rather than
// shelling out to a real python3.
func buildGraphWithCompiler(sources []string, compiler pypperoni.PyCompiler) (*pypperoni.Graph, error) {
	log := newLogger()
	opts := pypperoni.Options{
		ProjectName: flagProject,
		OutDir:      flagOut,
		Workers:     flagWorkers,
		Compiler:    compiler,
		Logger:      log,
	}

	g := pypperoni.NewGraph(opts)

	if flagStdlib != "" {
		if err := g.AddDirectory(flagStdlib); err != nil {
			return nil, err
		}
	}

	mainName := flagMain
	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			if err := g.AddTree(src); err != nil {
				return nil, err
			}
			continue
		}
		m, err := g.AddFile(src, "")
		if err != nil {
			return nil, err
		}
		if mainName == "" {
			mainName = m.Name
		}
	}

	g.GenerateCodecsIndex()

	if mainName == "" {
		return nil, fmt.Errorf("pypperonic: no main module to set (pass --main or at least one source file)")
	}
	if err := g.SetMain(mainName); err != nil {
		return nil, err
	}

	return g, nil
}

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build SOURCE [SOURCE...]",
		Short: "Lower every reachable module to C and write CMakeLists.txt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := buildGraph(args)
			if err != nil {
				return err
			}

			opts := pypperoni.Options{
				ProjectName:    flagProject,
				OutDir:         flagOut,
				Workers:        flagWorkers,
				MaxFileSize:    flagMaxFileSize,
				ExtraStackSize: flagExtraStack,
				SplitInterval:  flagSplitInterval,
				Compiler: &pypperoni.HostPyCompiler{
					PythonPath: flagPython,
					Timeout:    flagCompileTimeout,
				},
				Logger: newLogger(),
			}

			orc := pypperoni.NewOrchestrator(g, opts)
			files, err := orc.Run()
			if err != nil {
				return err
			}

			pypperoniRoot, _ := os.Getwd()
			pythonRoot := os.Getenv("PYPPERONI_PYTHON_ROOT")
			if pythonRoot == "" {
				pythonRoot = pypperoniRoot
			}
			if err := pypperoni.WriteCMakeLists(flagOut, flagProject, files, pypperoniRoot, pythonRoot); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d files to %s\n", len(files)+1, flagOut)
			return nil
		},
	}
}

func newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph SOURCE [SOURCE...]",
		Short: "Print the reduced module graph as a tree",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := buildGraph(args)
			if err != nil {
				return err
			}
			if err := g.Build(); err != nil {
				return err
			}
			g.Reduce()
			fmt.Fprint(cmd.OutOrStdout(), g.Tree())
			return nil
		},
	}
}
