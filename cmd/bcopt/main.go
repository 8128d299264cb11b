/*
 * Copyright 2026 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cloudwego/bcopt"
	"github.com/cloudwego/bcopt/classfile"
)

type dirList []string

func (self *dirList) String() string {
	return strings.Join(*self, ",")
}

func (self *dirList) Set(v string) error {
	*self = append(*self, v)
	return nil
}

var (
	inDir         = flag.String("in", "", "directory of the program class files")
	outDir        = flag.String("out", "", "directory receiving the optimized class files")
	configFile    = flag.String("config", "", "TOML configuration file")
	maxPasses     = flag.Int("passes", 0, "maximum number of passes")
	optimizations = flag.String("optimizations", "", "transformation filter, e.g. \"!method/inlining/*,**\"")
	exhaustive    = flag.Bool("exhaustive", false, "visit the whole program in every pass")
	verbose       = flag.Bool("v", false, "log every pass")
)

var libDirs dirList

func main() {
	flag.Var(&libDirs, "lib", "directory of library class files, may be repeated")
	flag.Parse()
	if *inDir == "" || *outDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	/* the logger */
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !*verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger error:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Error("optimization failed", zap.Error(err))
		os.Exit(1)
	}
}

// flagOptions turns the command line flags into options. Zero passes means
// the flag was not given.
func flagOptions(passes int, optimizations string, exhaustive bool) ([]bcopt.Option, error) {
	var ret []bcopt.Option
	if passes < 0 {
		return nil, fmt.Errorf("invalid -passes: %d", passes)
	} else if passes > 0 {
		ret = append(ret, bcopt.WithMaxPasses(passes))
	}
	if optimizations != "" {
		ret = append(ret, bcopt.WithOptimizations(optimizations))
	}
	if exhaustive {
		ret = append(ret, bcopt.WithExhaustive(true))
	}
	return ret, nil
}

func run(log *zap.Logger) error {
	var options []bcopt.Option
	libs := append([]string(nil), libDirs...)

	/* reject bad flags before reading anything */
	flags, err := flagOptions(*maxPasses, *optimizations, *exhaustive)
	if err != nil {
		return err
	}

	/* the configuration file comes first, the flags override it */
	if *configFile != "" {
		c, err := LoadConfig(*configFile)
		if err != nil {
			return err
		}
		options = append(options, c.Options()...)
		libs = append(libs, c.Library...)
	}
	options = append(options, flags...)
	options = append(options, bcopt.WithLogger(log))

	/* read the classes */
	program, err := bcopt.ReadDir(*inDir)
	if err != nil {
		return err
	}
	var library []*classfile.Class
	for _, dir := range libs {
		files, err := bcopt.ReadDir(dir)
		if err != nil {
			return err
		}
		library = append(library, bcopt.Classes(files)...)
	}

	/* optimize and write back */
	ret, err := bcopt.Optimize(bcopt.Classes(program), library, options...)
	if err != nil {
		return err
	}
	log.Info("optimization finished",
		zap.Stringer("state", ret.State),
		zap.Int("passes", ret.Passes),
		zap.Int("changes", ret.Changes()),
	)
	return bcopt.WriteDir(*outDir, program)
}
