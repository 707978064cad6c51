/*
 * Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License").
 * You may not use this file except in compliance with the License.
 * A copy of the License is located at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * or in the "license" file accompanying this file. This file is distributed
 * on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
 * express or implied. See the License for the specific language governing
 * permissions and limitations under the License.
 */

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/amazon-ion/ion-go/ion"
	"github.com/amzn/construct-go/internal/logging"
	"github.com/joho/godotenv"
)

// Set at link time.
var (
	GitCommit = "unknown"
	BuildTime = ""
)

// main is the main entry point for construct-go.
func main() {
	_ = godotenv.Load()
	logging.ConfigureRuntime()

	if len(os.Args) <= 1 {
		printHelp()
		return
	}

	var err error

	switch os.Args[1] {
	case "help", "--help", "-h":
		printHelp()

	case "version", "--version", "-v":
		err = printVersion()

	case "parse":
		err = process(parseCommand, os.Args[2:])

	case "build":
		err = process(buildCommand, os.Args[2:])

	case "sizeof":
		err = process(sizeofCommand, os.Args[2:])

	default:
		err = errors.New("unrecognized command \"" + os.Args[1] + "\"")
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// printHelp prints the help message for the program.
func printHelp() {
	fmt.Println("Usage:")
	fmt.Println("  construct-go help")
	fmt.Println("  construct-go version")
	fmt.Println("  construct-go parse -s schema [-t type] [-f format] [-o out] [-e errors] [-p name=value] [inputs]")
	fmt.Println("  construct-go build -s schema [-t type] [-o out] [-e errors] [-p name=value] [inputs]")
	fmt.Println("  construct-go sizeof -s schema [-t type] [-p name=value]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  help       Prints this help message.")
	fmt.Println("  version    Prints version information about this tool.")
	fmt.Println("  parse      Parses binary inputs with the schema and writes the values as Ion.")
	fmt.Println("  build      Reads Ion (or JSON) values and builds them into binary with the schema.")
	fmt.Println("  sizeof     Prints the static size of the schema's root or named type.")
	fmt.Println()
	fmt.Println("Output formats for parse: pretty (default), text, binary.")
	fmt.Println("Schemas are YAML (.yaml, .yml) or TOML (.toml).")
}

// printVersion prints (in ion) the version info for this tool.
func printVersion() error {
	w := ion.NewTextWriterOpts(os.Stdout, ion.TextWriterPretty)

	if err := w.BeginStruct(); err != nil {
		return err
	}
	if err := w.FieldName(ion.NewSymbolTokenFromString("version")); err != nil {
		return err
	}
	if err := w.WriteString(GitCommit); err != nil {
		return err
	}
	if err := w.FieldName(ion.NewSymbolTokenFromString("build_time")); err != nil {
		return err
	}
	buildTime := BuildTime
	if buildTime == "" {
		buildTime = "unknown-buildtime"
	}
	if err := w.WriteString(buildTime); err != nil {
		return err
	}
	if err := w.EndStruct(); err != nil {
		return err
	}

	return w.Finish()
}
